package miner

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/logsift/logsift/internal/logs/model"
	"go.uber.org/zap"
)

// Config carries the tunable mining knobs. Zero values fall back to the
// defaults below.
type Config struct {
	MaxLiteralLength    int
	SimilarityThreshold float64
	BucketWidth         time.Duration
	MaxBuckets          int
}

func (c Config) withDefaults() Config {
	if c.MaxLiteralLength <= 0 {
		c.MaxLiteralLength = 40
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.5
	}
	if c.BucketWidth <= 0 {
		c.BucketWidth = time.Hour
	}
	if c.MaxBuckets <= 0 {
		c.MaxBuckets = 48
	}
	return c
}

type TemplateMiner interface {
	// Mine reduces a message to its template, creating one when no existing
	// template is structurally compatible. It returns the template id and
	// whether the template was created by this call.
	Mine(message string, at time.Time) (templateId string, isNew bool)
	// Template returns a point-in-time copy of one template.
	Template(id string) (model.Template, bool)
	// Snapshot returns copies of all templates ordered by count descending.
	Snapshot() []model.Template
}

// templateRecord is the mutable in-memory state for one template. Stat
// updates are serialized by the record's own mutex; the index lock is only
// held for lookups and inserts.
type templateRecord struct {
	mu        sync.Mutex
	id        string
	tokens    []Token
	count     int64
	firstSeen time.Time
	lastSeen  time.Time
	buckets   []model.BucketCount
}

type TemplateMinerImpl struct {
	config     Config
	tokenizer  *Tokenizer
	classifier Classifier

	mu      sync.RWMutex
	byId    map[string]*templateRecord
	byWidth map[int][]*templateRecord

	logger *zap.Logger
}

func NewTemplateMiner(config Config, classifier Classifier, logger *zap.Logger) *TemplateMinerImpl {
	config = config.withDefaults()
	if classifier == nil {
		classifier = NewThresholdClassifier(DefaultTrendRatio, DefaultAnomalySigma)
	}
	return &TemplateMinerImpl{
		config:     config,
		tokenizer:  NewTokenizer(config.MaxLiteralLength),
		classifier: classifier,
		byId:       make(map[string]*templateRecord),
		byWidth:    make(map[int][]*templateRecord),
		logger:     logger,
	}
}

func (m *TemplateMinerImpl) Mine(message string, at time.Time) (string, bool) {
	tokens := m.tokenizer.Tokenize(message)
	if len(tokens) == 0 {
		tokens = []Token{{Value: "<EMPTY>", Kind: KindLiteral}}
	}

	m.mu.RLock()
	record := m.bestMatch(tokens)
	m.mu.RUnlock()

	if record == nil {
		m.mu.Lock()
		// Re-check under the write lock: a concurrent first sight of the
		// same pattern must not allocate a second id.
		record = m.bestMatch(tokens)
		if record == nil {
			record = &templateRecord{
				id:        uuid.NewString(),
				tokens:    tokens,
				firstSeen: at,
			}
			m.byId[record.id] = record
			m.byWidth[len(tokens)] = append(m.byWidth[len(tokens)], record)
			m.mu.Unlock()
			m.recordMatch(record, tokens, at)
			return record.id, true
		}
		m.mu.Unlock()
	}

	m.recordMatch(record, tokens, at)
	return record.id, false
}

// bestMatch finds the structurally compatible template with the highest
// similarity; equal similarity prefers the template with the larger count to
// limit fragmentation. Callers must hold at least a read lock on the index;
// each record's own mutex is taken while its tokens and count are read, since
// recordMatch mutates both without the index lock.
func (m *TemplateMinerImpl) bestMatch(tokens []Token) *templateRecord {
	var best *templateRecord
	var bestScore float64
	var bestCount int64
	for _, record := range m.byWidth[len(tokens)] {
		record.mu.Lock()
		score, compatible := similarity(record.tokens, tokens)
		count := record.count
		record.mu.Unlock()
		if !compatible || score < m.config.SimilarityThreshold {
			continue
		}
		if best == nil || score > bestScore || (score == bestScore && count > bestCount) {
			best = record
			bestScore = score
			bestCount = count
		}
	}
	return best
}

// similarity scores two equal-length token sequences. Placeholders absorb
// compatible tokens; a placeholder in the candidate facing a template
// literal is an incompatible layout.
func similarity(template, candidate []Token) (float64, bool) {
	if len(template) != len(candidate) {
		return 0, false
	}
	matches := 0
	for i, t := range template {
		c := candidate[i]
		switch t.Kind {
		case KindNum:
			if c.Kind == KindLiteral {
				return 0, false
			}
			matches++
		case KindStr:
			matches++
		default:
			if c.Kind != KindLiteral {
				return 0, false
			}
			if t.Value == c.Value {
				matches++
			}
		}
	}
	return float64(matches) / float64(len(template)), true
}

// recordMatch updates per-template statistics and generalizes literal
// positions that turned out to vary. Generalization only ever widens a
// position from literal to placeholder; the token layout itself is fixed at
// creation.
func (m *TemplateMinerImpl) recordMatch(record *templateRecord, tokens []Token, at time.Time) {
	record.mu.Lock()
	defer record.mu.Unlock()

	for i, t := range record.tokens {
		if t.Kind != KindLiteral {
			continue
		}
		c := tokens[i]
		if c.Kind == KindLiteral && c.Value == t.Value {
			continue
		}
		if c.Kind == KindNum && numberShape.MatchString(t.Value) {
			record.tokens[i].Kind = KindNum
		} else {
			record.tokens[i].Kind = KindStr
		}
	}

	record.count++
	if record.firstSeen.IsZero() || at.Before(record.firstSeen) {
		record.firstSeen = at
	}
	if at.After(record.lastSeen) {
		record.lastSeen = at
	}

	bucketStart := at.Truncate(m.config.BucketWidth)
	n := len(record.buckets)
	if n > 0 && record.buckets[n-1].Start.Equal(bucketStart) {
		record.buckets[n-1].Count++
	} else {
		record.buckets = append(record.buckets, model.BucketCount{Start: bucketStart, Count: 1})
		if len(record.buckets) > m.config.MaxBuckets {
			record.buckets = record.buckets[len(record.buckets)-m.config.MaxBuckets:]
		}
	}
}

func (m *TemplateMinerImpl) Template(id string) (model.Template, bool) {
	m.mu.RLock()
	record, ok := m.byId[id]
	m.mu.RUnlock()
	if !ok {
		return model.Template{}, false
	}
	return m.export(record), true
}

func (m *TemplateMinerImpl) Snapshot() []model.Template {
	m.mu.RLock()
	records := make([]*templateRecord, 0, len(m.byId))
	for _, record := range m.byId {
		records = append(records, record)
	}
	m.mu.RUnlock()

	templates := make([]model.Template, len(records))
	for i, record := range records {
		templates[i] = m.export(record)
	}
	sort.Slice(templates, func(i, j int) bool {
		if templates[i].Count != templates[j].Count {
			return templates[i].Count > templates[j].Count
		}
		return templates[i].TemplateId < templates[j].TemplateId
	})
	return templates
}

func (m *TemplateMinerImpl) export(record *templateRecord) model.Template {
	record.mu.Lock()
	defer record.mu.Unlock()

	parts := make([]string, len(record.tokens))
	for i, t := range record.tokens {
		parts[i] = t.Placeholder()
	}
	buckets := make([]model.BucketCount, len(record.buckets))
	copy(buckets, record.buckets)
	trend, anomaly := m.classifier.Classify(buckets)

	return model.Template{
		TemplateId:   record.id,
		Pattern:      strings.Join(parts, " "),
		Count:        record.count,
		FirstSeen:    record.firstSeen,
		LastSeen:     record.lastSeen,
		RecentCounts: buckets,
		Trend:        trend,
		Anomaly:      anomaly,
	}
}

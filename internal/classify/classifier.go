// Package classify assigns one of a small fixed set of category labels
// to a message based on its subject and body text.
package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
)

// Categories is the fixed classification vocabulary. Every trained
// label and every Classify result is drawn from this set.
var Categories = []string{"Work", "Personal", "Spam", "Promotions"}

// ErrNotTrained is returned by Classify when no model has been trained
// or loaded. Callers treat it as a per-message failure, never a fatal one.
var ErrNotTrained = errors.New("classifier model is not trained")

// Sample is one labeled training example.
type Sample struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// smoothing is the Laplace smoothing constant applied to word counts.
const smoothing = 0.1

// model is the serializable state of a trained classifier.
type model struct {
	// WordCounts maps category -> word -> occurrence count.
	WordCounts map[string]map[string]float64 `json:"word_counts"`

	// DocCounts maps category -> number of training documents.
	DocCounts map[string]float64 `json:"doc_counts"`

	// TotalWords maps category -> total word occurrences.
	TotalWords map[string]float64 `json:"total_words"`

	// Vocabulary is the number of distinct words seen during training.
	Vocabulary int `json:"vocabulary"`

	// TotalDocs is the number of training documents.
	TotalDocs float64 `json:"total_docs"`
}

// Classifier is a multinomial naive-Bayes text classifier over the
// fixed category set. It is safe for concurrent use: Classify takes a
// read lock, Train and Load take the write lock.
type Classifier struct {
	mu      sync.RWMutex
	trained bool
	m       model
}

// New returns an untrained classifier. Use Train or Load before Classify.
func New() *Classifier {
	return &Classifier{}
}

// Trained reports whether a model is available for classification.
func (c *Classifier) Trained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.trained
}

// Train fits the model on the given labeled samples, replacing any
// previous model. Every sample label must be one of Categories.
func (c *Classifier) Train(samples []Sample) error {
	if len(samples) == 0 {
		return errors.New("training data cannot be empty")
	}

	valid := make(map[string]bool, len(Categories))
	for _, cat := range Categories {
		valid[cat] = true
	}

	m := model{
		WordCounts: make(map[string]map[string]float64, len(Categories)),
		DocCounts:  make(map[string]float64, len(Categories)),
		TotalWords: make(map[string]float64, len(Categories)),
	}
	for _, cat := range Categories {
		m.WordCounts[cat] = make(map[string]float64)
	}

	vocab := make(map[string]bool)

	for _, s := range samples {
		if !valid[s.Category] {
			return fmt.Errorf("invalid category %q: must be one of %v", s.Category, Categories)
		}

		m.DocCounts[s.Category]++
		m.TotalDocs++

		for _, word := range tokenize(s.Text) {
			m.WordCounts[s.Category][word]++
			m.TotalWords[s.Category]++
			vocab[word] = true
		}
	}

	m.Vocabulary = len(vocab)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = m
	c.trained = true
	return nil
}

// Classify scores the combined subject and body against every category
// and returns the best label. It returns ErrNotTrained when no model
// has been trained or loaded.
func (c *Classifier) Classify(subject, body string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.trained {
		return "", ErrNotTrained
	}

	words := tokenize(subject + " " + body)

	best := ""
	bestScore := math.Inf(-1)

	for _, cat := range Categories {
		score := c.scoreCategory(cat, words)
		if score > bestScore {
			best = cat
			bestScore = score
		}
	}

	return best, nil
}

// scoreCategory computes the log-posterior of one category: the log
// prior plus the smoothed log likelihood of every token. Callers must
// hold the read lock.
func (c *Classifier) scoreCategory(cat string, words []string) float64 {
	// Categories absent from the training set get a floor prior of one
	// pseudo-document so the log stays finite.
	docs := c.m.DocCounts[cat]
	if docs == 0 {
		docs = smoothing
	}
	score := math.Log(docs / (c.m.TotalDocs + smoothing))

	denom := c.m.TotalWords[cat] + smoothing*float64(c.m.Vocabulary+1)
	for _, word := range words {
		count := c.m.WordCounts[cat][word]
		score += math.Log((count + smoothing) / denom)
	}

	return score
}

// Save persists the trained model as JSON at path, creating parent
// directories if needed.
func (c *Classifier) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.trained {
		return errors.New("cannot save untrained model")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}

	data, err := json.Marshal(c.m)
	if err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing model to %s: %w", path, err)
	}

	return nil
}

// Load reads a previously saved model from path, replacing any
// in-memory model.
func (c *Classifier) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading model %s: %w", path, err)
	}

	var m model
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decoding model %s: %w", path, err)
	}

	if m.WordCounts == nil || m.TotalDocs == 0 {
		return fmt.Errorf("model %s is empty", path)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = m
	c.trained = true
	return nil
}

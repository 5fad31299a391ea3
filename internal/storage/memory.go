package storage

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// MemoryStore is a map-backed Store used by tests and local development. It
// evaluates the operator subset the filter translator emits: $eq, $ne, $lt,
// $lte, $gt, $gte, $in and $regex (with $options "i"), plus plain equality
// and dotted field paths.
type MemoryStore struct {
	mu sync.RWMutex
	// database -> collection -> documents
	data map[string]map[string][]Document
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]Document)}
}

func (s *MemoryStore) docs(database, collection string) []Document {
	if db, ok := s.data[database]; ok {
		return db[collection]
	}
	return nil
}

func (s *MemoryStore) FindOne(ctx context.Context, database, collection string, filter bson.M) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.docs(database, collection) {
		if matchFilter(doc, filter) {
			return cloneDocument(doc), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Find(ctx context.Context, database, collection string, filter bson.M, opts FindOptions) ([]Document, error) {
	s.mu.RLock()
	matched := make([]Document, 0)
	for _, doc := range s.docs(database, collection) {
		if matchFilter(doc, filter) {
			matched = append(matched, cloneDocument(doc))
		}
	}
	s.mu.RUnlock()

	if len(opts.Sort) > 0 {
		sortDocuments(matched, opts.Sort, opts.CaseInsensitive)
	}

	if opts.Offset > 0 {
		if opts.Offset >= int64(len(matched)) {
			return []Document{}, nil
		}
		matched = matched[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < int64(len(matched)) {
		matched = matched[:opts.Limit]
	}

	return matched, nil
}

func (s *MemoryStore) Count(ctx context.Context, database, collection string, filter bson.M) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, doc := range s.docs(database, collection) {
		if matchFilter(doc, filter) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) InsertOne(ctx context.Context, database, collection string, doc Document) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneDocument(doc)
	if _, ok := stored["_id"]; !ok {
		stored["_id"] = uuid.NewString()
	}

	if _, ok := s.data[database]; !ok {
		s.data[database] = make(map[string][]Document)
	}
	s.data[database][collection] = append(s.data[database][collection], stored)

	return stored["_id"], nil
}

func (s *MemoryStore) UpdateOne(ctx context.Context, database, collection string, filter bson.M, update bson.M) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, _ := update["$set"].(bson.M)
	if set == nil {
		if m, ok := update["$set"].(map[string]interface{}); ok {
			set = bson.M(m)
		}
	}

	for _, doc := range s.docs(database, collection) {
		if matchFilter(doc, filter) {
			for k, v := range set {
				doc[k] = v
			}
			return 1, nil
		}
	}
	return 0, nil
}

func (s *MemoryStore) DeleteOne(ctx context.Context, database, collection string, filter bson.M) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.docs(database, collection)
	for i, doc := range docs {
		if matchFilter(doc, filter) {
			s.data[database][collection] = append(docs[:i:i], docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func cloneDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func lookupPath(doc Document, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = doc
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func matchFilter(doc Document, filter bson.M) bool {
	for field, expected := range filter {
		actual, present := lookupPath(doc, field)

		switch cond := expected.(type) {
		case bson.M:
			if !matchOperators(actual, present, cond) {
				return false
			}
		case map[string]interface{}:
			if !matchOperators(actual, present, bson.M(cond)) {
				return false
			}
		default:
			if !present || !valuesEqual(actual, expected) {
				return false
			}
		}
	}
	return true
}

func matchOperators(actual interface{}, present bool, ops bson.M) bool {
	pattern, hasRegex := ops["$regex"]
	if hasRegex {
		if !present {
			return false
		}
		expr := fmt.Sprintf("%v", pattern)
		if opts, ok := ops["$options"].(string); ok && strings.Contains(opts, "i") {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return false
		}
		str, ok := actual.(string)
		if !ok || !re.MatchString(str) {
			return false
		}
	}

	for op, operand := range ops {
		switch op {
		case "$regex", "$options":
			// handled above
		case "$eq":
			if !present || !valuesEqual(actual, operand) {
				return false
			}
		case "$ne":
			if present && valuesEqual(actual, operand) {
				return false
			}
		case "$in":
			if !present || !valueIn(actual, operand) {
				return false
			}
		case "$lt", "$lte", "$gt", "$gte":
			if !present || !compareNumeric(actual, operand, op) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func valueIn(actual, operand interface{}) bool {
	switch list := operand.(type) {
	case []interface{}:
		for _, candidate := range list {
			if valuesEqual(actual, candidate) {
				return true
			}
		}
	case []string:
		for _, candidate := range list {
			if valuesEqual(actual, candidate) {
				return true
			}
		}
	}
	return false
}

func compareNumeric(actual, operand interface{}, op string) bool {
	fa, okA := toFloat(actual)
	fb, okB := toFloat(operand)
	if okA && okB {
		switch op {
		case "$lt":
			return fa < fb
		case "$lte":
			return fa <= fb
		case "$gt":
			return fa > fb
		case "$gte":
			return fa >= fb
		}
		return false
	}

	// Fall back to lexical comparison for non-numeric operands.
	sa := fmt.Sprintf("%v", actual)
	sb := fmt.Sprintf("%v", operand)
	switch op {
	case "$lt":
		return sa < sb
	case "$lte":
		return sa <= sb
	case "$gt":
		return sa > sb
	case "$gte":
		return sa >= sb
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func sortDocuments(docs []Document, spec bson.D, caseInsensitive bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range spec {
			a, _ := lookupPath(docs[i], key.Key)
			b, _ := lookupPath(docs[j], key.Key)
			cmp := compareValues(a, b, caseInsensitive)
			if cmp == 0 {
				continue
			}
			desc := false
			if dir, ok := toFloat(key.Value); ok && dir < 0 {
				desc = true
			}
			if desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareValues(a, b interface{}, caseInsensitive bool) int {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}

	sa := fmt.Sprintf("%v", a)
	sb := fmt.Sprintf("%v", b)
	if caseInsensitive {
		sa = strings.ToLower(sa)
		sb = strings.ToLower(sb)
	}
	return strings.Compare(sa, sb)
}

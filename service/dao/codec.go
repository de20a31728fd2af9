package dao

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
)

// SortedKeys returns the map keys in ascending order.
func SortedKeys[K cmp.Ordered, T any](records map[K]*T) []K {
	keys := make([]K, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Encode serializes records as a JSON array ordered by key. Nil records are
// skipped.
func Encode[K cmp.Ordered, T any](records map[K]*T) ([]byte, error) {
	items := make([]*T, 0, len(records))
	for _, k := range SortedKeys(records) {
		if v := records[k]; v != nil {
			items = append(items, v)
		}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}
	return data, nil
}

// Decode parses a JSON array produced by Encode back into a keyed map.
// Empty input yields an empty map. A record with an empty key or a key seen
// twice makes the whole input ErrCorrupt.
func Decode[K cmp.Ordered, T any](data []byte, key KeyFunc[K, T]) (map[K]*T, error) {
	result := make(map[K]*T)
	if len(data) == 0 {
		return result, nil
	}
	var items []*T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	var zero K
	for i, item := range items {
		if item == nil {
			continue
		}
		k := key(item)
		if k == zero {
			return nil, fmt.Errorf("%w: record %d has an empty key", ErrCorrupt, i)
		}
		if _, ok := result[k]; ok {
			return nil, fmt.Errorf("%w: duplicate key %v", ErrCorrupt, k)
		}
		result[k] = item
	}
	return result, nil
}

// Clone deep-copies records through their JSON form.
func Clone[K cmp.Ordered, T any](records map[K]*T) (map[K]*T, error) {
	result := make(map[K]*T, len(records))
	for k, v := range records {
		if v == nil {
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to copy record %v: %w", k, err)
		}
		var copied T
		if err = json.Unmarshal(data, &copied); err != nil {
			return nil, fmt.Errorf("failed to copy record %v: %w", k, err)
		}
		result[k] = &copied
	}
	return result, nil
}

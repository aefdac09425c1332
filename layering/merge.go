package layering

import (
	"fmt"
	"reflect"
)

// IdentityFunc returns the identity fields declared for record lists found
// at depth. Depth follows the reconciliation convention: the document root is
// depth 0 and each nested map or list adds one.
type IdentityFunc func(depth int) []string

// MergeDocuments composes plain documents (maps, slices and scalars as
// produced by JSON or YAML decoders) ordered from strongest to weakest.
// Maps merge field by field. Record lists with identity fields at their depth
// merge record by record, keeping the weaker layer's order and appending
// records only stronger layers know about. Any other value from a stronger
// layer replaces the weaker one.
func MergeDocuments(identity IdentityFunc, layers ...any) any {
	if len(layers) == 0 {
		return nil
	}
	merged := Clone(layers[len(layers)-1])
	for i := len(layers) - 2; i >= 0; i-- {
		merged = mergeDocument(identity, layers[i], merged, 0)
	}
	return merged
}

func mergeDocument(identity IdentityFunc, strong, weak any, depth int) any {
	if strong == nil {
		return Clone(weak)
	}
	switch typed := strong.(type) {
	case map[string]any:
		weakMap, ok := weak.(map[string]any)
		if !ok {
			return Clone(typed)
		}
		result := make(map[string]any, len(weakMap)+len(typed))
		for key, value := range weakMap {
			result[key] = Clone(value)
		}
		for key, value := range typed {
			if existing, ok := result[key]; ok {
				result[key] = mergeDocument(identity, value, existing, depth+1)
				continue
			}
			result[key] = Clone(value)
		}
		return result
	case []any:
		weakList, ok := weak.([]any)
		if !ok || identity == nil {
			return Clone(typed)
		}
		return mergeRecords(identity, typed, weakList, depth)
	default:
		return Clone(strong)
	}
}

func mergeRecords(identity IdentityFunc, strong, weak []any, depth int) any {
	fields := identity(depth)
	if len(fields) == 0 {
		return Clone(strong)
	}
	strongKeys, ok := recordKeys(strong, fields)
	if !ok {
		return Clone(strong)
	}
	weakKeys, ok := recordKeys(weak, fields)
	if !ok {
		return Clone(strong)
	}

	byKey := make(map[string]int, len(strong))
	for i, key := range strongKeys {
		byKey[key] = i
	}
	used := make(map[string]struct{}, len(strong))
	result := make([]any, 0, len(weak)+len(strong))
	for i, record := range weak {
		key := weakKeys[i]
		if j, ok := byKey[key]; ok {
			result = append(result, mergeDocument(identity, strong[j], record, depth+1))
			used[key] = struct{}{}
			continue
		}
		result = append(result, Clone(record))
	}
	for i, record := range strong {
		if _, ok := used[strongKeys[i]]; ok {
			continue
		}
		result = append(result, Clone(record))
	}
	return result
}

// recordKeys renders one identity per record. It fails when an item is not a
// record or carries none of fields.
func recordKeys(records []any, fields []string) ([]string, bool) {
	keys := make([]string, len(records))
	for i, item := range records {
		record, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		key := ""
		for _, field := range fields {
			value, ok := record[field]
			if !ok || value == nil {
				continue
			}
			rendered := fmt.Sprintf("%T:%v", value, value)
			key += fmt.Sprintf("%d:%s=%d:%s;", len(field), field, len(rendered), rendered)
		}
		if key == "" {
			return nil, false
		}
		keys[i] = key
	}
	return keys, true
}

// Clone deep-copies maps, slices and pointers reachable from value.
func Clone(value any) any {
	if value == nil {
		return nil
	}
	cloned := cloneValue(reflect.ValueOf(value))
	if !cloned.IsValid() {
		return nil
	}
	return cloned.Interface()
}

func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.New(v.Type().Elem())
		clone.Elem().Set(cloneValue(v.Elem()))
		return clone
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := cloneValue(v.Elem())
		if !elem.IsValid() {
			return reflect.Zero(v.Type())
		}
		return elem.Convert(v.Type())
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			elem := cloneValue(iter.Value())
			if !elem.IsValid() {
				elem = reflect.Zero(v.Type().Elem())
			}
			clone.SetMapIndex(iter.Key(), elem)
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			elem := cloneValue(v.Index(i))
			if !elem.IsValid() {
				continue
			}
			clone.Index(i).Set(elem)
		}
		return clone
	case reflect.Array:
		clone := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	default:
		return v
	}
}

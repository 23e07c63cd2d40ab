package vectorstore

import (
	"fmt"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

func toQdrantPayload(payload map[string]interface{}) (map[string]*qdrant.Value, error) {
	out := make(map[string]*qdrant.Value, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case string:
			out[k] = qdrant.NewValueString(val)
		case int:
			out[k] = qdrant.NewValueInt(int64(val))
		case int64:
			out[k] = qdrant.NewValueInt(val)
		case uint64:
			out[k] = qdrant.NewValueInt(int64(val))
		case float32:
			out[k] = qdrant.NewValueDouble(float64(val))
		case float64:
			out[k] = qdrant.NewValueDouble(val)
		case bool:
			out[k] = qdrant.NewValueBool(val)
		case nil:
			out[k] = qdrant.NewValueNull()
		default:
			return nil, fmt.Errorf("unsupported payload type %T for key %q", v, k)
		}
	}
	return out, nil
}

func fromQdrantPayload(payload map[string]*qdrant.Value) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		switch val := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = val.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = val.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = val.DoubleValue
		case *qdrant.Value_BoolValue:
			out[k] = val.BoolValue
		}
	}
	return out
}

func toQdrantFilter(f *Filter) *qdrant.Filter {
	if f.IsEmpty() {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(f.Must))
	for _, m := range f.Must {
		conditions = append(conditions, qdrant.NewMatchKeyword(m.Key, m.Value))
	}
	return &qdrant.Filter{Must: conditions}
}

// toChromemMetadata flattens a payload into chromem's string-only metadata.
func toChromemMetadata(payload map[string]interface{}) map[string]string {
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case float32:
			out[k] = strconv.FormatFloat(float64(val), 'f', -1, 32)
		case int:
			out[k] = strconv.Itoa(val)
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

func fromChromemMetadata(metadata map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

func toChromemWhere(f *Filter) map[string]string {
	if f.IsEmpty() {
		return nil
	}
	where := make(map[string]string, len(f.Must))
	for _, m := range f.Must {
		where[m.Key] = m.Value
	}
	return where
}

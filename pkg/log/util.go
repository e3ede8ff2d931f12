package log

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// toFields converts a loosely-typed argument list to zap fields.
// Supported patterns:
//  1. A bare `zap.Field` is passed through as-is.
//  2. A bare `error` becomes `zap.Error(err)`.
//  3. A (string, value) pair becomes a typed field.
//  4. Anything else falls back to zap.Any under a synthesized key, so no
//     data is silently dropped.
func toFields(args ...any) []zap.Field {
	if len(args) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(args)/2+1)

	for i := 0; i < len(args); {
		if f, ok := args[i].(zap.Field); ok {
			fields = append(fields, f)
			i++
			continue
		}

		if err, ok := args[i].(error); ok {
			fields = append(fields, zap.Error(err))
			i++
			continue
		}

		// Unpaired trailing value.
		if i == len(args)-1 {
			fields = append(fields, zap.Any(fmt.Sprintf("arg#%d", i), args[i]))
			break
		}

		key, val := args[i], args[i+1]
		i += 2

		keyStr, ok := key.(string)
		if !ok {
			// Non-string key: keep both key and value visible.
			fields = append(fields, zap.Any(fmt.Sprintf("invalid_key_%d", i/2), map[string]any{
				"key":   key,
				"value": val,
			}))
			continue
		}

		switch v := val.(type) {
		case string:
			fields = append(fields, zap.String(keyStr, v))
		case bool:
			fields = append(fields, zap.Bool(keyStr, v))
		case int:
			fields = append(fields, zap.Int(keyStr, v))
		case int64:
			fields = append(fields, zap.Int64(keyStr, v))
		case uint32:
			fields = append(fields, zap.Uint32(keyStr, v))
		case uint64:
			fields = append(fields, zap.Uint64(keyStr, v))
		case float64:
			fields = append(fields, zap.Float64(keyStr, v))
		case time.Duration:
			fields = append(fields, zap.Duration(keyStr, v))
		case time.Time:
			fields = append(fields, zap.Time(keyStr, v))
		case error:
			fields = append(fields, zap.NamedError(keyStr, v))
		case fmt.Stringer:
			fields = append(fields, zap.String(keyStr, v.String()))
		case []byte:
			fields = append(fields, zap.Binary(keyStr, v))
		default:
			fields = append(fields, zap.Any(keyStr, v))
		}
	}

	return fields
}

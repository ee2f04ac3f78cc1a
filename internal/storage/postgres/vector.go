package postgres

import (
	"strconv"
	"strings"
)

// encodeVector prepares a vector for a parameterized query against
// either column type schema.go's vectorColumnType chose. When pgvector
// is available the column is "vector", whose input function accepts
// the bracketed text form "[1,2,3]"; pgx sends the string as untyped
// text and postgres resolves it against the target column. When
// pgvector is absent the column is a plain double precision[], which
// pgx's array codec encodes natively from a []float64.
func encodeVector(v []float64, pgvector bool) interface{} {
	if !pgvector {
		return v
	}
	return vectorLiteral(v)
}

func vectorLiteral(v []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

// decodeVector accepts whatever shape the driver handed back for a
// vector/double precision[] column: a native []float64 from the array
// codec, or a bracketed text literal from the pgvector extension's text
// representation.
func decodeVector(raw interface{}) []float64 {
	switch v := raw.(type) {
	case nil:
		return nil
	case []float64:
		return v
	case string:
		return parseVectorLiteral(v)
	case []byte:
		return parseVectorLiteral(string(v))
	default:
		return nil
	}
}

func parseVectorLiteral(s string) []float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}

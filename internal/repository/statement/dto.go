package statement

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/civium/simsearch/internal/domain"
)

// Hash field names. The embedding field name must match the FT index schema.
const (
	fieldText       = "text"
	fieldCreatorID  = "creator_id"
	fieldQuestionID = "question_id"
	fieldHidden     = "hidden"
	fieldCreatedAt  = "created_at"
	fieldEmbedding  = "embedding"
)

// buildHashFields converts a Statement into a flat map[string]string for HSET.
func buildHashFields(st *domain.Statement) map[string]string {
	m := map[string]string{
		fieldText:       st.Text(),
		fieldCreatorID:  st.CreatorID(),
		fieldQuestionID: st.QuestionID(),
		fieldHidden:     boolTag(st.Hidden()),
		fieldCreatedAt:  strconv.FormatInt(st.CreatedAt(), 10),
	}
	if len(st.Embedding()) > 0 {
		m[fieldEmbedding] = vectorToBytes(st.Embedding())
	}
	return m
}

// parseHashFields converts a flat hash map back into a Statement.
func parseHashFields(id string, m map[string]string) domain.Statement {
	createdAt, _ := strconv.ParseInt(m[fieldCreatedAt], 10, 64)
	var vector []float32
	if raw, ok := m[fieldEmbedding]; ok {
		vector = bytesToVector(raw)
	}
	return domain.ReconstructStatement(
		id,
		m[fieldText],
		m[fieldCreatorID],
		m[fieldQuestionID],
		vector,
		m[fieldHidden] == "1",
		createdAt,
	)
}

func boolTag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// escapeTag escapes RediSearch tag syntax characters in a tag value.
var escapeTag = strings.NewReplacer(
	",", "\\,", ".", "\\.", "<", "\\<", ">", "\\>",
	"{", "\\{", "}", "\\}", "\"", "\\\"", "'", "\\'",
	":", "\\:", ";", "\\;", "!", "\\!", "@", "\\@",
	"#", "\\#", "$", "\\$", "%", "\\%", "^", "\\^",
	"&", "\\&", "*", "\\*", "(", "\\(", ")", "\\)",
	"-", "\\-", "+", "\\+", "=", "\\=", "~", "\\~",
	" ", "\\ ",
).Replace

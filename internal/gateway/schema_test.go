package gateway

import (
	"errors"
	"fmt"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_Parse(t *testing.T) {
	schema := Schema{Fields: []Field{
		{Name: "新聞摘要", Required: true, Validate: func(v string) error {
			if utf8.RuneCountInString(v) < 3 {
				return fmt.Errorf("too short")
			}
			return nil
		}},
		{Name: "note"},
	}}

	tests := []struct {
		name    string
		raw     string
		want    map[string]string
		wantErr bool
	}{
		{name: "plain object", raw: `{"新聞摘要": "台積電營收創新高"}`, want: map[string]string{"新聞摘要": "台積電營收創新高"}},
		{name: "fenced", raw: "```json\n{\"新聞摘要\": \"摘要內容\"}\n```", want: map[string]string{"新聞摘要": "摘要內容"}},
		{name: "surrounded by prose", raw: `結果如下：{"新聞摘要": "摘要內容"} 謝謝`, want: map[string]string{"新聞摘要": "摘要內容"}},
		{name: "brace inside string", raw: `{"新聞摘要": "指數 {上漲} 了", "note": "x"} trailing {}`, want: map[string]string{"新聞摘要": "指數 {上漲} 了", "note": "x"}},
		{name: "reasoning block", raw: `<think>{"draft": 1}</think>{"新聞摘要": "摘要內容"}`, want: map[string]string{"新聞摘要": "摘要內容"}},
		{name: "value trimmed", raw: `{"新聞摘要": "  摘要內容  "}`, want: map[string]string{"新聞摘要": "摘要內容"}},
		{name: "no object", raw: "I cannot help", wantErr: true},
		{name: "unterminated", raw: `{"新聞摘要": "摘要`, wantErr: true},
		{name: "missing required", raw: `{"note": "x"}`, wantErr: true},
		{name: "non string", raw: `{"新聞摘要": ["a"]}`, wantErr: true},
		{name: "validator rejects", raw: `{"新聞摘要": "短"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := schema.Parse(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrSchemaViolation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchema_Describe(t *testing.T) {
	schema := Schema{Fields: []Field{
		{Name: "股票標的", Description: "公司簡稱(股票代號)", Required: true},
		{Name: "note"},
	}}

	desc := schema.Describe()
	assert.Contains(t, desc, `"股票標的"`)
	assert.Contains(t, desc, `"公司簡稱(股票代號)"`)
	assert.Contains(t, desc, `"required": [`)
	assert.NotContains(t, desc, `\u`)
}

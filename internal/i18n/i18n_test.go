package i18n

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		lang string
		id   string
		want string
	}{
		{"en", "ErrStorageUnavailable", "Local storage unavailable"},
		{"zh", "ErrStorageUnavailable", "本地存储不可用"},
		{"zh-CN", "MsgEvaluationSaved", "评估结果已保存"},
		{"fr", "MsgEvaluationSaved", "Evaluation saved"},
	}
	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.id, func(t *testing.T) {
			ctx := initLang(t, tt.lang)
			if got := T(ctx, tt.id); got != tt.want {
				t.Errorf("T(%s) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")
	if got := Tp(ctx, "MsgQuestionsGenerated", 1); got != "Generated 1 question" {
		t.Errorf("Tp(1) = %q", got)
	}
	if got := Tp(ctx, "MsgQuestionsGenerated", 5); got != "Generated 5 questions" {
		t.Errorf("Tp(5) = %q", got)
	}

	zh := initLang(t, "zh")
	if got := Tp(zh, "MsgQuestionsGenerated", 3); got != "成功生成3道题目" {
		t.Errorf("zh Tp(3) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "zh")
	if got := Td(ctx, "MsgKBDeleted", map[string]any{"Name": "kb_go"}); got != "知识库 kb_go 已删除" {
		t.Errorf("Td = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")
	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q", got)
	}
}

func TestMiddlewareNegotiates(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var got string
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ErrInternal")
	}))

	tests := []struct {
		url    string
		header string
		want   string
	}{
		{"/", "", "Internal server error"},
		{"/", "zh-CN,zh;q=0.9,en;q=0.8", "服务器内部错误"},
		{"/", "de-DE", "Internal server error"},
		{"/?lang=zh", "en-US", "服务器内部错误"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.url, nil)
		if tt.header != "" {
			req.Header.Set("Accept-Language", tt.header)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		if got != tt.want {
			t.Errorf("%s Accept-Language=%q: got %q, want %q", tt.url, tt.header, got, tt.want)
		}
	}
}

func TestInitLanguages(t *testing.T) {
	tests := []struct {
		lang    string
		wantErr error
	}{
		{"zh", nil},
		{"zh-CN", nil},
		{"en-US", nil},
		{"fr", ErrNoTranslations},
	}
	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			t.Cleanup(func() { _ = Init("en") })
			err := Init(tt.lang)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Init(%q) error = %v, want %v", tt.lang, err, tt.wantErr)
			}
		})
	}
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := len(Languages()); got != 2 {
		t.Errorf("Languages() = %v, want en and zh", Languages())
	}
}

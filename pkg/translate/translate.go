package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cisco7507/LangId-mr/pkg/log"
)

// ErrUnsupportedPair is returned for any direction other than EN to FR or
// FR to EN.
var ErrUnsupportedPair = errors.New("translation pair not supported")

// Translator converts text between English and French.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// HTTPTranslator calls an external translation endpoint. The endpoint takes
// {"text","source_lang","target_lang"} and answers {"translation"}.
type HTTPTranslator struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTranslator builds a translator against the given endpoint URL.
func NewHTTPTranslator(endpoint string) *HTTPTranslator {
	return &HTTPTranslator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type translateResponse struct {
	Translation string `json:"translation"`
}

func (t *HTTPTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if sourceLang == targetLang {
		return text, nil
	}
	if err := checkPair(sourceLang, targetLang); err != nil {
		return "", err
	}
	if t.endpoint == "" {
		return "", errors.New("translate: no endpoint configured")
	}

	body, err := json.Marshal(translateRequest{
		Text:       text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.WithComponent("translate").Warn().
			Int("status", resp.StatusCode).
			Str("body", string(b)).
			Msg("translation endpoint error")
		return "", fmt.Errorf("translate: endpoint returned %d", resp.StatusCode)
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("translate: decode response: %w", err)
	}
	return out.Translation, nil
}

func checkPair(sourceLang, targetLang string) error {
	ok := (sourceLang == "en" && targetLang == "fr") ||
		(sourceLang == "fr" && targetLang == "en")
	if !ok {
		return fmt.Errorf("%w: %s to %s", ErrUnsupportedPair, Label(sourceLang), Label(targetLang))
	}
	return nil
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mefolio/internal/resume"
)

// PrintData 是内部打印端点返回的渲染输入。
type PrintData struct {
	ProfileName string          `json:"profile_name"`
	Layout      string          `json:"layout"`
	Palette     string          `json:"palette"`
	ShowIcons   bool            `json:"show_icons"`
	FontScale   int             `json:"font_scale"`
	Locale      string          `json:"locale"`
	Document    resume.Document `json:"document"`
}

// fetchPrintData 从 API 的内部打印端点拉取渲染输入。
// 仅 Worker 可访问，凭据通过 X-Internal-Secret 传递。
func fetchPrintData(ctx context.Context, baseURL string, profileID uint, secret string) (*PrintData, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("internal api secret missing")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("internal api base url missing")
	}

	targetURL := fmt.Sprintf("%s/internal/print/profiles/%d", baseURL, profileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build internal request: %w", err)
	}
	req.Header.Set("X-Internal-Secret", secret)

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request print data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return nil, fmt.Errorf("print data status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var data PrintData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode print data: %w", err)
	}
	return &data, nil
}

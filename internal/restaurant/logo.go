// Package restaurant は店舗登録・管理のドメインロジックを提供する。
package restaurant

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// defaultMaxLogoSize はロゴ画像の最大サイズ（2MB）。
const defaultMaxLogoSize = 2 * 1024 * 1024

// defaultLogoTimeout はロゴ取得のタイムアウト。
const defaultLogoTimeout = 10 * time.Second

// userAgent はロゴ取得時のUser-Agentヘッダー。
const userAgent = "Dishpatch/1.0 Restaurant Directory"

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// LogoFetcherService は店舗ロゴ取得のインターフェース。
type LogoFetcherService interface {
	// FetchLogo は指定URLからロゴ画像を取得する。
	// 取得失敗時はnilデータと空MIMEを返す（エラーは返さない）。
	FetchLogo(ctx context.Context, logoURL string) (data []byte, mimeType string, err error)

	// FetchLogoForSite は店舗サイトURLからロゴを検出して取得する。
	// サイトHTMLのlink rel="icon"系タグを解析し、見つからない場合は
	// /favicon.ico を試行する。取得失敗時はnilデータと空MIMEを返す。
	FetchLogoForSite(ctx context.Context, siteURL string) (data []byte, mimeType string, err error)
}

// LogoFetcher は店舗ロゴ取得機能の実装。
type LogoFetcher struct {
	ssrfGuard SSRFValidator
	timeout   time.Duration
	maxSize   int64
}

// NewLogoFetcher はLogoFetcherの新しいインスタンスを生成する。
// timeoutまたはmaxSizeがゼロの場合はデフォルト値を使用する。
func NewLogoFetcher(ssrfGuard SSRFValidator, timeout time.Duration, maxSize int64) *LogoFetcher {
	if timeout <= 0 {
		timeout = defaultLogoTimeout
	}
	if maxSize <= 0 {
		maxSize = defaultMaxLogoSize
	}
	return &LogoFetcher{
		ssrfGuard: ssrfGuard,
		timeout:   timeout,
		maxSize:   maxSize,
	}
}

// FetchLogo は指定URLからロゴ画像を取得する。
// 取得失敗時はnilデータと空MIMEを返す（ロゴ未設定として保存される）。
func (f *LogoFetcher) FetchLogo(ctx context.Context, logoURL string) ([]byte, string, error) {
	if logoURL == "" {
		return nil, "", nil
	}

	// SSRF検証
	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(logoURL); err != nil {
			slog.Warn("ロゴ取得: SSRFブロック", "url", logoURL, "error", err)
			return nil, "", nil
		}
	}

	client := f.getHTTPClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, logoURL, nil)
	if err != nil {
		slog.Warn("ロゴ取得: リクエスト作成失敗", "url", logoURL, "error", err)
		return nil, "", nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("ロゴ取得: HTTPリクエスト失敗", "url", logoURL, "error", err)
		return nil, "", nil
	}
	defer resp.Body.Close()

	// 2xx以外はロゴ取得失敗として扱う
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("ロゴ取得: HTTPステータス異常", "url", logoURL, "status", resp.StatusCode)
		return nil, "", nil
	}

	// レスポンスボディを読み込み（最大サイズ+1で超過を検出）
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		slog.Warn("ロゴ取得: レスポンス読み取り失敗", "url", logoURL, "error", err)
		return nil, "", nil
	}

	if int64(len(body)) > f.maxSize {
		slog.Warn("ロゴ取得: サイズ超過", "url", logoURL, "size", len(body))
		return nil, "", nil
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))

	// 画像でない場合はnilを返す
	if !isImageMime(mimeType) {
		slog.Warn("ロゴ取得: 画像以外のContent-Type", "url", logoURL, "contentType", mimeType)
		return nil, "", nil
	}

	return body, mimeType, nil
}

// FetchLogoForSite は店舗サイトURLからロゴを検出して取得する。
// 1. サイトHTMLを取得し、headタグのlink rel="icon"系タグを解析
// 2. 検出した候補から優先順位に従ってロゴURLを選択して取得
// 3. 未検出または取得失敗時は /favicon.ico を試行
func (f *LogoFetcher) FetchLogoForSite(ctx context.Context, siteURL string) ([]byte, string, error) {
	if siteURL == "" {
		return nil, "", nil
	}

	// サイトHTMLからアイコンリンクを検出
	candidates := f.discoverIconLinks(ctx, siteURL)
	for _, candidate := range candidates {
		data, mimeType, _ := f.FetchLogo(ctx, candidate)
		if data != nil {
			return data, mimeType, nil
		}
	}

	// フォールバック: /favicon.ico
	fallbackURL := guessDefaultLogoURL(siteURL)
	if fallbackURL == "" {
		return nil, "", nil
	}
	return f.FetchLogo(ctx, fallbackURL)
}

// discoverIconLinks はサイトHTMLを取得し、アイコンリンクの候補URLを優先順で返す。
// 取得・解析に失敗した場合は空スライスを返す（フォールバックに委ねる）。
func (f *LogoFetcher) discoverIconLinks(ctx context.Context, siteURL string) []string {
	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(siteURL); err != nil {
			slog.Warn("ロゴ検出: SSRFブロック", "url", siteURL, "error", err)
			return nil
		}
	}

	client := f.getHTTPClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, siteURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html, */*")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("ロゴ検出: サイトHTML取得失敗", "url", siteURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}

	mediaType := extractMimeType(resp.Header.Get("Content-Type"))
	if !strings.Contains(mediaType, "html") {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize))
	if err != nil {
		return nil
	}

	return parseIconLinksFromHTML(body, siteURL)
}

// parseIconLinksFromHTML はHTMLのheadタグからアイコンリンクを解析・検出する。
// rel="icon", rel="shortcut icon", rel="apple-touch-icon" を対象とし、
// apple-touch-icon（高解像度）を優先して返す。
// 相対URLはbaseURLを基準に絶対URLに解決される。
func parseIconLinksFromHTML(htmlBody []byte, baseURL string) []string {
	baseU, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var touchIcons []string
	var icons []string

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return append(touchIcons, icons...)

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}

			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return append(touchIcons, icons...)
			}

			if !inHead || tagName != "link" || !hasAttr {
				continue
			}

			// link要素の属性を解析
			var rel, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}

			if href == "" {
				continue
			}

			resolvedURL := resolveURL(baseU, href)
			if resolvedURL == "" {
				continue
			}

			switch {
			case strings.Contains(rel, "apple-touch-icon"):
				touchIcons = append(touchIcons, resolvedURL)
			case rel == "icon" || rel == "shortcut icon":
				icons = append(icons, resolvedURL)
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return append(touchIcons, icons...)
			}
		}
	}
}

// resolveURL は相対URLをベースURLを基準に絶対URLに解決する。
func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// getHTTPClient はHTTPクライアントを取得する。
// SSRFGuardが設定されている場合はSSRF防止付きクライアントを返す。
func (f *LogoFetcher) getHTTPClient() *http.Client {
	if f.ssrfGuard != nil {
		return f.ssrfGuard.NewSafeClient(f.timeout, f.maxSize)
	}
	return &http.Client{Timeout: f.timeout}
}

// guessDefaultLogoURL はサイトURLからデフォルトのfavicon URLを推測する。
func guessDefaultLogoURL(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil {
		return ""
	}

	u.Path = "/favicon.ico"
	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// isImageMime はMIMEタイプが画像かどうかを判定する。
func isImageMime(mimeType string) bool {
	if mimeType == "" {
		return false
	}
	return strings.HasPrefix(mimeType, "image/")
}

// compile-time interface check
var _ LogoFetcherService = (*LogoFetcher)(nil)

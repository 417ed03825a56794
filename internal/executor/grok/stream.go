package grok

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jellyfish-p/web-proxy-api/internal/config"
	"github.com/jellyfish-p/web-proxy-api/internal/executor"
	"github.com/jellyfish-p/web-proxy-api/internal/mediacache"
	"github.com/jellyfish-p/web-proxy-api/internal/middle"
)

// streamResponse implements §4.6's NDJSON streaming transform: one JSON
// object per line, carrying result.response. Video/image results short
// circuit into a single markdown/HTML chunk; otherwise token fragments
// stream as normalized deltas.
func streamResponse(ctx context.Context, body io.Reader, req middle.Content, cfg config.Grok, cache *mediacache.Cache, cookie string, out chan<- executor.StreamChunk) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	roleSent := false
	emit := func(delta middle.Delta) {
		if !roleSent && delta.Content != "" {
			delta.Role = "assistant"
			roleSent = true
		}
		select {
		case out <- executor.StreamChunk{Chunk: middle.Chunk{Model: req.Model, Delta: delta}}:
		case <-ctx.Done():
		}
	}
	finish := func(reason string) {
		select {
		case out <- executor.StreamChunk{Chunk: middle.Chunk{Model: req.Model, FinishReason: reason, Done: true}}:
		case <-ctx.Done():
		}
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		resp := gjson.Get(line, "result.response")
		if !resp.Exists() {
			continue
		}

		if videoURL := resp.Get("streamingVideoGenerationResponse.videoUrl").String(); videoURL != "" {
			if _, err := cache.Get(ctx, mediacache.KindVideo, videoURL, cookie); err != nil {
				return fmt.Errorf("grok: download video: %w", err)
			}
			emit(middle.Delta{Content: fmt.Sprintf(`<video src="%s" controls width=500 height=300></video>`, mediacache.LocalURLPath(mediacache.KindVideo, videoURL))})
			finish("stop")
			return nil
		}

		if images := resp.Get("modelResponse.generatedImageUrls"); images.IsArray() {
			images.ForEach(func(_, img gjson.Result) bool {
				url := img.String()
				if cfg.ImageMode == "base64" {
					dataURL, err := cache.GetAsBase64(ctx, mediacache.KindImage, url, cookie, "image/jpeg")
					if err == nil {
						emit(middle.Delta{Content: fmt.Sprintf("![Generated Image](%s)\n", dataURL)})
					}
					return true
				}
				_, err := cache.Get(ctx, mediacache.KindImage, url, cookie)
				if err == nil {
					emit(middle.Delta{Content: fmt.Sprintf("![Generated Image](%s)\n", mediacache.LocalURLPath(mediacache.KindImage, url))})
				}
				return true
			})
			finish("stop")
			return nil
		}

		tokenField := resp.Get("token")
		if tokenField.IsArray() {
			continue
		}
		token := tokenField.String()
		if token == "" {
			continue
		}
		if containsFilteredTag(token, cfg.FilteredTags) {
			continue
		}
		if !cfg.ShowThinking && resp.Get("isThinking").Bool() {
			continue
		}
		emit(middle.Delta{Content: token})
	}
	finish("stop")
	return scanner.Err()
}

func containsFilteredTag(token string, tags []string) bool {
	for _, t := range tags {
		if t != "" && strings.Contains(token, t) {
			return true
		}
	}
	return false
}

package proxy

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/stacklok/dataverse-devauth/pkg/logger"
)

// snippetPath is where the proxy serves the fetch-wrapping browser snippet.
const snippetPath = "/_devauth/inject.js"

var (
	headCloseTag = []byte("</head>")
	scriptTag    = []byte(`<script src="` + snippetPath + `"></script>`)
)

// injectScriptTag inserts the snippet's script tag before the closing head
// tag. Documents without one come back unchanged.
func injectScriptTag(body []byte) []byte {
	idx := indexCaseInsensitive(body, headCloseTag)
	if idx < 0 {
		return body
	}
	out := make([]byte, 0, len(body)+len(scriptTag))
	out = append(out, body[:idx]...)
	out = append(out, scriptTag...)
	out = append(out, body[idx:]...)
	return out
}

func indexCaseInsensitive(haystack, needle []byte) int {
	return bytes.Index(bytes.ToLower(haystack), needle)
}

// injectResponse rewrites an upstream HTML response in place so the page
// loads the snippet. Non-HTML and compressed responses pass through
// untouched; dev servers are asked for identity encoding by the director.
func injectResponse(resp *http.Response) error {
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/html" {
		return nil
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "" && enc != "identity" {
		logger.Debugf("skipping snippet injection for %s-encoded response", enc)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if cerr := resp.Body.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	body = injectScriptTag(body)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	return nil
}

package httpx

import (
	"fmt"
	"html"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"dqx0.com/go/portkit/container"
	"dqx0.com/go/portkit/internal/obs"
	"dqx0.com/go/portkit/uri"
)

var defaultMimeTable = sync.OnceValue(func() *container.HashMap[string, string] {
	m := container.NewStringHashMap[string]()
	for ext, typ := range map[string]string{
		"htm":  "text/html",
		"html": "text/html",
		"css":  "text/css",
		"txt":  "text/plain",
		"xml":  "text/xml",
		"js":   "application/javascript",
		"json": "application/json",
		"pdf":  "application/pdf",
		"zip":  "application/zip",
		"gz":   "application/x-gzip",
		"gif":  "image/gif",
		"jpg":  "image/jpeg",
		"jpeg": "image/jpeg",
		"jpe":  "image/jpeg",
		"png":  "image/png",
		"bmp":  "image/bmp",
		"tif":  "image/tiff",
		"tiff": "image/tiff",
		"ico":  "image/x-icon",
		"svg":  "image/svg+xml",
		"mp3":  "audio/mpeg",
		"wav":  "audio/wav",
		"wma":  "audio/x-ms-wma",
		"ogg":  "application/ogg",
		"flac": "audio/x-flac",
		"aac":  "audio/aac",
		"m4a":  "audio/mp4",
		"mp4":  "video/mp4",
		"m4v":  "video/mp4",
		"mov":  "video/quicktime",
		"avi":  "video/x-msvideo",
		"mpg":  "video/mpeg",
		"mpeg": "video/mpeg",
		"mkv":  "video/x-matroska",
		"wmv":  "video/x-ms-wmv",
		"flv":  "video/x-flv",
		"ts":   "video/MP2T",
	} {
		m.Put(ext, typ)
	}
	return m
})

// FileHandler serves files below fileRoot for request paths below urlRoot.
// It answers GET and HEAD, supports a single byte range per request and can
// list directories.
type FileHandler struct {
	urlRoot   string
	fileRoot  string
	autoDir   bool
	autoIndex string

	defaultMimeType     string
	useDefaultMimeTable bool
	mimeTypes           *container.Map[string, string]

	logger obs.Logger
}

// NewFileHandler serves fileRoot at urlRoot. With autoDir set directories
// without an index are listed. autoIndex names the file a directory
// request is redirected to, e.g. "index.html".
func NewFileHandler(urlRoot, fileRoot string, autoDir bool, autoIndex string) *FileHandler {
	return &FileHandler{
		urlRoot:             urlRoot,
		fileRoot:            fileRoot,
		autoDir:             autoDir,
		autoIndex:           autoIndex,
		defaultMimeType:     "text/html",
		useDefaultMimeTable: true,
		mimeTypes:           container.NewMap[string, string](),
	}
}

// AddMimeType maps a file extension (without the dot) to a mime type. It
// takes precedence over the built-in table.
func (h *FileHandler) AddMimeType(ext, mimeType string) {
	h.mimeTypes.Put(strings.ToLower(ext), mimeType)
}

func (h *FileHandler) SetDefaultMimeType(v string)  { h.defaultMimeType = v }
func (h *FileHandler) SetUseDefaultMimeTable(b bool) { h.useDefaultMimeTable = b }
func (h *FileHandler) SetLogger(l obs.Logger)        { h.logger = obs.Named(l, "portkit.http.file-handler") }

// MimeType returns the mime type for filename from its extension.
func (h *FileHandler) MimeType(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		return h.defaultMimeType
	}
	if v, ok := h.mimeTypes.Lookup(ext); ok {
		return v
	}
	if h.useDefaultMimeTable {
		if v, ok := defaultMimeTable().Lookup(ext); ok {
			return v
		}
	}
	return h.defaultMimeType
}

func (h *FileHandler) SetupResponse(req *Request, rc *RequestContext, resp *Response) error {
	if req.Method != MethodGet && req.Method != MethodHead {
		resp.SetStatus(405, "")
		return nil
	}
	resp.Headers.SetHeader(HeaderAcceptRanges, "bytes", true)
	if req.Protocol == Protocol11 {
		resp.Protocol = Protocol11
	}

	reqPath := uri.PercentDecode(req.URL.Path())
	if !strings.HasPrefix(reqPath, h.urlRoot) {
		return errors.Wrapf(ErrInvalidParameters, "%q is outside %q", reqPath, h.urlRoot)
	}
	rel := path.Clean("/" + reqPath[len(h.urlRoot):])
	filename := filepath.Join(h.fileRoot, filepath.FromSlash(rel))
	obs.OrNop(h.logger).Logf(obs.Fine, "%s %s -> %s", req.Method, reqPath, filename)

	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrNoSuchItem, "%s", reqPath)
		}
		return errors.Wrapf(err, "stat %s", filename)
	}
	if info.IsDir() {
		return h.setupDirectory(req, resp, reqPath, filename)
	}
	return h.setupFile(req, resp, filename, info.Size())
}

func (h *FileHandler) setupDirectory(req *Request, resp *Response, reqPath, dirname string) error {
	if h.autoIndex != "" {
		if fi, err := os.Stat(filepath.Join(dirname, h.autoIndex)); err == nil && !fi.IsDir() {
			location := req.URL.Path()
			if !strings.HasSuffix(location, "/") {
				location += "/"
			}
			resp.SetStatus(302, "")
			resp.Headers.SetHeader(HeaderLocation, location+uri.PercentEncode(h.autoIndex, uri.PathCharsToEncode, true), true)
			return nil
		}
	}
	if !h.autoDir {
		return errors.Wrapf(ErrPermissionDenied, "%s", reqPath)
	}
	entries, err := os.ReadDir(dirname)
	if err != nil {
		return errors.Wrapf(err, "read dir %s", dirname)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var b strings.Builder
	title := html.EscapeString(reqPath)
	fmt.Fprintf(&b, "<html><head><title>Directory Listing for %s</title></head><body>", title)
	fmt.Fprintf(&b, "<h2>Directory Listing for %s</h2><ul>\n", title)
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() {
			name += "/"
		}
		href := uri.PercentEncode(name, uri.PathCharsToEncode, true)
		fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a></li>\n", html.EscapeString(href), html.EscapeString(name))
	}
	b.WriteString("</ul></body></html>")

	e := NewEntity()
	e.SetInputString(b.String())
	e.SetContentType("text/html")
	resp.SetEntity(e)
	return nil
}

func (h *FileHandler) setupFile(req *Request, resp *Response, filename string, size int64) error {
	start, length := int64(0), size
	if rng, ok := req.Headers.GetHeaderValue(HeaderRange); ok {
		first, last, err := parseByteRange(rng, size)
		switch {
		case errors.Is(err, errRangeSyntax):
			resp.SetStatus(400, "")
			return nil
		case err != nil:
			resp.SetStatus(416, "")
			resp.Headers.SetHeader(HeaderContentRange, "bytes */"+strconv.FormatInt(size, 10), true)
			return nil
		}
		start, length = first, last-first+1
		resp.SetStatus(206, "")
		resp.Headers.SetHeader(HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", first, last, size), true)
	}

	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(ErrPermissionDenied, "open %s: %v", filename, err)
	}
	if start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			_ = f.Close()
			return errors.Wrapf(err, "seek %s", filename)
		}
	}
	e := NewEntity()
	e.SetInputStream(f, false)
	e.SetContentLength(length)
	e.SetContentType(h.MimeType(filename))
	resp.SetEntity(e)
	return nil
}

var (
	errRangeSyntax        = errors.New("httpx: invalid range")
	errRangeUnsatisfiable = errors.New("httpx: range not satisfiable")
)

// parseByteRange parses a single "bytes=a-b", "bytes=a-" or "bytes=-n"
// range against a resource of size bytes and returns the inclusive bounds.
// Several ranges are reported as unsatisfiable.
func parseByteRange(rng string, size int64) (int64, int64, error) {
	const prefix = "bytes="
	rng = strings.TrimSpace(rng)
	if len(rng) < len(prefix) || !strings.EqualFold(rng[:len(prefix)], prefix) {
		return 0, 0, errRangeSyntax
	}
	rng = rng[len(prefix):]
	if strings.Contains(rng, ",") {
		return 0, 0, errRangeUnsatisfiable
	}
	dash := strings.IndexByte(rng, '-')
	if dash < 0 {
		return 0, 0, errRangeSyntax
	}
	from, to := strings.TrimSpace(rng[:dash]), strings.TrimSpace(rng[dash+1:])
	var first, last int64
	switch {
	case from == "" && to == "":
		return 0, 0, errRangeSyntax
	case from == "":
		n, err := strconv.ParseInt(to, 10, 64)
		if err != nil || n < 0 {
			return 0, 0, errRangeSyntax
		}
		if n == 0 {
			return 0, 0, errRangeUnsatisfiable
		}
		first, last = max(size-n, 0), size-1
	default:
		n, err := strconv.ParseInt(from, 10, 64)
		if err != nil || n < 0 {
			return 0, 0, errRangeSyntax
		}
		first, last = n, size-1
		if to != "" {
			m, err := strconv.ParseInt(to, 10, 64)
			if err != nil || m < 0 {
				return 0, 0, errRangeSyntax
			}
			last = min(m, size-1)
			if m < first {
				return 0, 0, errRangeSyntax
			}
		}
	}
	if first >= size || last < first {
		return 0, 0, errRangeUnsatisfiable
	}
	return first, last, nil
}

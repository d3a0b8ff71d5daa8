package eventlog

import (
	"bufio"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/goto/salt/log"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"

	"github.com/NvTimLiu/spark-rapids-tools/internal/errors"
)

// Plan descriptions make individual lines large; allow lines up to this
// size before declaring the stream unreadable.
const maxLineBytes = 128 * 1024 * 1024

var partIndexPattern = regexp.MustCompile(`events_(\d+)_`)

// Reader resolves an event-log path into a single replayable line stream.
// A path may be a plain file, a gzip or zstd compressed file, or a rolling
// directory of numbered part-files that are concatenated in part order.
type Reader struct {
	fs     afero.Fs
	logger log.Logger
}

func NewReader(fs afero.Fs, logger log.Logger) *Reader {
	return &Reader{fs: fs, logger: logger}
}

// Open returns the decompressed, concatenated stream for an event log.
func (r *Reader) Open(logPath string) (io.ReadCloser, error) {
	info, err := r.fs.Stat(logPath)
	if err != nil {
		return nil, errors.NotFound(EntityEventLog, "unable to stat "+logPath+": "+err.Error())
	}
	if info.IsDir() {
		return r.openRollingDir(logPath)
	}
	return r.openFile(logPath)
}

func (r *Reader) openFile(filePath string) (io.ReadCloser, error) {
	f, err := r.fs.Open(filePath)
	if err != nil {
		return nil, errors.NotFound(EntityEventLog, "unable to open "+filePath+": "+err.Error())
	}
	switch {
	case strings.HasSuffix(filePath, ".gz"), strings.HasSuffix(filePath, ".gzip"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.InvalidArgument(EntityEventLog, filePath+" is not valid gzip: "+err.Error())
		}
		return &chainedCloser{Reader: gz, closers: []io.Closer{gz, f}}, nil
	case strings.HasSuffix(filePath, ".zst"), strings.HasSuffix(filePath, ".zstd"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.InvalidArgument(EntityEventLog, filePath+" is not valid zstd: "+err.Error())
		}
		zrc := zr.IOReadCloser()
		return &chainedCloser{Reader: zrc, closers: []io.Closer{zrc, f}}, nil
	default:
		return f, nil
	}
}

// openRollingDir concatenates numbered part-files in ascending part order.
// Status marker files are not event data and are skipped.
func (r *Reader) openRollingDir(dirPath string) (io.ReadCloser, error) {
	entries, err := afero.ReadDir(r.fs, dirPath)
	if err != nil {
		return nil, errors.NotFound(EntityEventLog, "unable to list "+dirPath+": "+err.Error())
	}

	type part struct {
		name  string
		index int
	}
	var parts []part
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), "appstatus_") {
			continue
		}
		parts = append(parts, part{name: entry.Name(), index: partIndex(entry.Name())})
	}
	if len(parts) == 0 {
		return nil, errors.NotFound(EntityEventLog, dirPath+" contains no event part-files")
	}
	sort.Slice(parts, func(i, j int) bool {
		if parts[i].index != parts[j].index {
			return parts[i].index < parts[j].index
		}
		return parts[i].name < parts[j].name
	})

	readers := make([]io.Reader, 0, len(parts))
	closers := make([]io.Closer, 0, len(parts))
	for _, p := range parts {
		rc, err := r.openFile(path.Join(dirPath, p.name))
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
			return nil, err
		}
		readers = append(readers, rc)
		closers = append(closers, rc)
	}
	return &chainedCloser{Reader: io.MultiReader(readers...), closers: closers}, nil
}

func partIndex(name string) int {
	m := partIndexPattern.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return idx
}

type chainedCloser struct {
	io.Reader
	closers []io.Closer
}

func (c *chainedCloser) Close() error {
	me := errors.NewMultiError("close event log stream errors")
	for _, closer := range c.closers {
		me.Append(closer.Close())
	}
	return me.ToErr()
}

// Scanner yields raw event lines. Truncated reports whether the stream
// became unreadable before its natural end, in which case whatever was
// scanned so far is still usable as a partial replay.
type Scanner struct {
	scanner   *bufio.Scanner
	truncated bool
}

func NewScanner(r io.Reader) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024*1024), maxLineBytes)
	return &Scanner{scanner: sc}
}

func (s *Scanner) Scan() bool {
	if s.truncated {
		return false
	}
	if s.scanner.Scan() {
		return true
	}
	if err := s.scanner.Err(); err != nil {
		s.truncated = true
	}
	return false
}

func (s *Scanner) Bytes() []byte   { return s.scanner.Bytes() }
func (s *Scanner) Truncated() bool { return s.truncated }

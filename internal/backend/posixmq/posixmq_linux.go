//go:build linux

package posixmq

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/torosent/mqbench/internal/backend"
)

const (
	msgMaxPath     = "/proc/sys/fs/mqueue/msg_max"
	msgSizeMaxPath = "/proc/sys/fs/mqueue/msgsize_max"
)

// mqAttr mirrors the kernel's struct mq_attr; C long is Go int on linux.
type mqAttr struct {
	Flags   int
	MaxMsg  int
	MsgSize int
	CurMsgs int
	_       [4]int
}

// Queue implements backend.Backend over an open message queue descriptor.
type Queue struct {
	cfg    Config
	fd     int
	attr   mqAttr
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open negotiates capacity with the system limits, creates the queue and
// reads back its effective attributes.
func Open(cfg Config, logger *zap.Logger) (*Queue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.UnlinkAtStart {
		_ = mqUnlink(cfg.Name)
	}

	msgMax, msgSizeMax := SystemLimits()
	maxMsg := cfg.MaxMessages
	if maxMsg > msgMax {
		logger.Warn("requested max messages exceeds system msg_max, capping",
			zap.Int("requested", maxMsg), zap.Int("msg_max", msgMax))
		maxMsg = msgMax
	}
	msgSize := cfg.MessageSize
	if msgSize > msgSizeMax {
		logger.Warn("requested message size exceeds system msgsize_max, capping",
			zap.Int("requested", msgSize), zap.Int("msgsize_max", msgSizeMax))
		msgSize = msgSizeMax
	}
	maxMsg = max(maxMsg, 1)
	msgSize = max(msgSize, 1)

	flags := unix.O_CREAT | unix.O_RDWR | unix.O_CLOEXEC
	attr := mqAttr{MaxMsg: maxMsg, MsgSize: msgSize}
	if cfg.NonBlocking {
		flags |= unix.O_NONBLOCK
		attr.Flags = unix.O_NONBLOCK
	}

	fd, err := mqOpen(cfg.Name, flags, 0o600, &attr)
	if err != nil {
		return nil, fmt.Errorf("posixmq: open %s: %w (check %s and %s)", cfg.Name, err, msgMaxPath, msgSizeMaxPath)
	}

	q := &Queue{cfg: cfg, fd: fd, logger: logger}
	if err := mqGetAttr(fd, &q.attr); err != nil {
		_ = q.Close()
		return nil, fmt.Errorf("posixmq: getattr %s: %w", cfg.Name, err)
	}
	logger.Info("opened posix message queue",
		zap.String("name", cfg.Name),
		zap.Int("mq_flags", q.attr.Flags),
		zap.Int("mq_maxmsg", q.attr.MaxMsg),
		zap.Int("mq_msgsize", q.attr.MsgSize))
	return q, nil
}

// TrySend calls mq_timedsend with an absolute CLOCK_REALTIME deadline. A
// non-positive timeout uses a deadline that has already passed, so the call
// fails immediately instead of waiting when the queue is full.
func (q *Queue) TrySend(_ context.Context, msg []byte, timeout time.Duration) error {
	var p unsafe.Pointer
	if len(msg) > 0 {
		p = unsafe.Pointer(&msg[0])
	}
	ts := absTimeout(timeout)
	_, _, errno := unix.Syscall6(unix.SYS_MQ_TIMEDSEND,
		uintptr(q.fd), uintptr(p), uintptr(len(msg)), 0, uintptr(unsafe.Pointer(&ts)), 0)
	return classify(errno)
}

// TryReceive calls mq_timedreceive. buf must be at least mq_msgsize bytes.
func (q *Queue) TryReceive(_ context.Context, buf []byte, timeout time.Duration) (int, error) {
	var p unsafe.Pointer
	if len(buf) > 0 {
		p = unsafe.Pointer(&buf[0])
	}
	var prio uint32
	ts := absTimeout(timeout)
	n, _, errno := unix.Syscall6(unix.SYS_MQ_TIMEDRECEIVE,
		uintptr(q.fd), uintptr(p), uintptr(len(buf)), uintptr(unsafe.Pointer(&prio)), uintptr(unsafe.Pointer(&ts)), 0)
	if err := classify(errno); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Describe reports the effective queue attributes.
func (q *Queue) Describe() map[string]string {
	return map[string]string{
		"name":       q.cfg.Name,
		"mq_flags":   strconv.Itoa(q.attr.Flags),
		"mq_maxmsg":  strconv.Itoa(q.attr.MaxMsg),
		"mq_msgsize": strconv.Itoa(q.attr.MsgSize),
	}
}

// MessageSize returns the effective mq_msgsize.
func (q *Queue) MessageSize() int {
	return q.attr.MsgSize
}

// Close closes the descriptor and unlinks the queue if configured.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		var errs []error
		if err := unix.Close(q.fd); err != nil {
			errs = append(errs, fmt.Errorf("posixmq: close: %w", err))
		}
		if q.cfg.UnlinkAtEnd {
			if err := mqUnlink(q.cfg.Name); err != nil && !errors.Is(err, unix.ENOENT) {
				errs = append(errs, fmt.Errorf("posixmq: unlink %s: %w", q.cfg.Name, err))
			}
		}
		q.closeErr = errors.Join(errs...)
	})
	return q.closeErr
}

func classify(errno unix.Errno) error {
	switch errno {
	case 0:
		return nil
	case unix.EAGAIN, unix.ETIMEDOUT, unix.EINTR:
		return backend.WouldBlock(errno)
	default:
		return errno
	}
}

func absTimeout(timeout time.Duration) unix.Timespec {
	deadline := time.Now()
	if timeout > 0 {
		deadline = deadline.Add(timeout)
	}
	return unix.NsecToTimespec(deadline.UnixNano())
}

// mqOpen takes the name as seen by mq_open(3); the kernel wants it without
// the leading slash.
func mqOpen(name string, flags int, mode uint32, attr *mqAttr) (int, error) {
	p, err := unix.BytePtrFromString(strings.TrimPrefix(name, "/"))
	if err != nil {
		return -1, err
	}
	fd, _, errno := unix.Syscall6(unix.SYS_MQ_OPEN,
		uintptr(unsafe.Pointer(p)), uintptr(flags), uintptr(mode), uintptr(unsafe.Pointer(attr)), 0, 0)
	if errno != 0 {
		return -1, errno
	}
	return int(fd), nil
}

func mqUnlink(name string) error {
	p, err := unix.BytePtrFromString(strings.TrimPrefix(name, "/"))
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(unix.SYS_MQ_UNLINK, uintptr(unsafe.Pointer(p)), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func mqGetAttr(fd int, out *mqAttr) error {
	_, _, errno := unix.Syscall(unix.SYS_MQ_GETSETATTR, uintptr(fd), 0, uintptr(unsafe.Pointer(out)))
	if errno != 0 {
		return errno
	}
	return nil
}

// SystemLimits returns the kernel's msg_max and msgsize_max, or the Linux
// defaults when they cannot be read.
func SystemLimits() (maxMessages, messageSize int) {
	return readLimit(msgMaxPath, 10), readLimit(msgSizeMaxPath, 8192)
}

func readLimit(path string, fallback int) int {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return fallback
	}
	return v
}

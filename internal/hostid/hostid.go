// Package hostid verifies that a node has a non-zero host identifier before
// a pool is configured for failover. Two nodes sharing a zero host id can
// both import the same pool.
package hostid

import (
	"encoding/binary"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sigreer/lustrezfs/internal/ldd"
)

const (
	DefaultSPLPath    = "/sys/module/spl/parameters/spl_hostid"
	DefaultHostIDPath = "/etc/hostid"
)

// Checker reads the host id from the spl module parameter, falling back to
// the system hostid file.
type Checker struct {
	SPLPath    string
	HostIDPath string
	// Skip downgrades a missing host id to a warning
	Skip bool
	Log  *zap.SugaredLogger
}

// NeedsCheck reports whether params request failover behavior
func NeedsCheck(params string) bool {
	d := ldd.DiskData{Params: params}
	return d.HasParam(ldd.ParamFailNode) || d.HasParam(ldd.ParamFailNodeAlias)
}

func (c *Checker) log() *zap.SugaredLogger {
	if c.Log == nil {
		return zap.NewNop().Sugar()
	}
	return c.Log
}

// Check returns nil when params do not request failover or a non-zero host
// id is configured.
func (c *Checker) Check(params string) error {
	if !NeedsCheck(params) {
		return nil
	}

	hostid, err := c.ReadSPL()
	if err != nil {
		return err
	}
	if hostid != 0 {
		return nil
	}

	hostid, err = c.ReadFile()
	if err != nil {
		c.log().Warnf("Failed to read %s: %s", c.hostIDPath(), err)
		hostid = 0
	}

	if hostid == 0 {
		if c.Skip {
			c.log().Warn("WARNING: spl_hostid not set. ZFS has no zpool import protection")
			return nil
		}
		return errors.Wrap(syscall.EINVAL, "spl_hostid not set")
	}

	return nil
}

func (c *Checker) splPath() string {
	if c.SPLPath == "" {
		return DefaultSPLPath
	}
	return c.SPLPath
}

func (c *Checker) hostIDPath() string {
	if c.HostIDPath == "" {
		return DefaultHostIDPath
	}
	return c.HostIDPath
}

// ReadSPL returns the host id exported by the spl kernel module. The value
// may be written in decimal, octal or 0x-prefixed hex.
func (c *Checker) ReadSPL() (uint64, error) {
	data, err := os.ReadFile(c.splPath())
	if err != nil {
		return 0, errors.Wrap(err, "Failed to open spl_hostid")
	}

	val, err := strconv.ParseInt(strings.TrimSpace(string(data)), 0, 64)
	if err != nil {
		return 0, errors.Wrapf(syscall.EINVAL, "Failed to read spl_hostid: %s", err)
	}
	return uint64(val), nil
}

// ReadFile returns the 32-bit host id stored in native byte order. A
// missing file yields zero.
func (c *Checker) ReadFile() (uint64, error) {
	f, err := os.Open(c.hostIDPath())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	var id uint32
	if err := binary.Read(f, binary.NativeEndian, &id); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return 0, errors.Errorf("short read: %s", err)
		}
		return 0, err
	}
	return uint64(id), nil
}

package zfs

import (
	"strings"
)

// ListPools returns the names of all imported pools
func (c *CLI) ListPools() ([]string, error) {
	out, err := c.exec("zpool", "list", "-H", "-o", "name")
	if err != nil {
		return nil, cmdError(out, err, "zpool list")
	}
	return splitLines(string(out)), nil
}

// ListFilesystems returns every filesystem dataset below root, or in all
// pools when root is empty.
func (c *CLI) ListFilesystems(root string) ([]string, error) {
	args := []string{"list", "-H", "-o", "name", "-t", "filesystem"}
	if root != "" {
		args = append(args, "-r", root)
	}
	out, err := c.exec("zfs", args...)
	if err != nil {
		return nil, cmdError(out, err, "zfs list")
	}
	return splitLines(string(out)), nil
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

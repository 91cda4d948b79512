package share

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const connectTimeout = 30 * time.Second

func defaultProvider() SessionProvider {
	if runtime.GOOS == "windows" {
		return &NetUseProvider{}
	}
	return &MountProvider{}
}

// UNCPath builds a \\host\share[\subpath] path.
func UNCPath(host, shareName string, subPath ...string) string {
	path := `\\` + host + `\` + shareName
	for _, sub := range subPath {
		sub = strings.Trim(strings.ReplaceAll(sub, "/", `\`), `\`)
		if sub != "" {
			path += `\` + sub
		}
	}
	return path
}

// NetUseProvider establishes SMB sessions on Windows by shelling out to
// `net use`. Any stale session for the share is dropped first so credential
// changes take effect.
type NetUseProvider struct{}

// Connect authenticates against the share and returns its UNC path.
func (p *NetUseProvider) Connect(ctx context.Context, host, shareName, username, secret string) (string, error) {
	uncPath := UNCPath(host, shareName)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	// Stale sessions block re-authentication; drop errors on the floor, a
	// missing session is the common case.
	disconnect := exec.CommandContext(ctx, "net", "use", uncPath, "/delete", "/y")
	_ = disconnect.Run()

	args := []string{"use", uncPath}
	if username != "" {
		args = append(args, secret, "/user:"+username)
	}
	connect := exec.CommandContext(ctx, "net", args...)
	output, err := connect.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("net use %s: %v: %s", uncPath, err, strings.TrimSpace(string(output)))
	}
	return uncPath, nil
}

// MountProvider serves POSIX hosts where SMB shares are pre-mounted (CIFS
// fstab entries or an automounter). It verifies the mount point is an
// accessible directory rather than performing the mount itself.
type MountProvider struct {
	// MountRoot is where shares appear, as <root>/<host>/<share>.
	// Defaults to /mnt.
	MountRoot string
}

// Connect verifies the share's mount point is present and readable.
func (p *MountProvider) Connect(ctx context.Context, host, shareName, username, secret string) (string, error) {
	root := p.MountRoot
	if strings.TrimSpace(root) == "" {
		root = "/mnt"
	}
	mountPath := root + "/" + host + "/" + shareName

	done := make(chan error, 1)
	go func() {
		info, err := os.Stat(mountPath)
		if err != nil {
			done <- err
			return
		}
		if !info.IsDir() {
			done <- fmt.Errorf("%s is not a directory", mountPath)
			return
		}
		// A readable listing proves the mount is live, not a dead handle.
		_, err = os.ReadDir(mountPath)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("share not mounted at %s: %w", mountPath, err)
		}
	}
	return mountPath, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// browserOpener 把报告写入临时目录后交给系统浏览器打开，由浏览器负责打印
type browserOpener struct {
	dir string
	// command 为空时按平台选择
	command []string
}

func (o browserOpener) OpenReport(ctx context.Context, name string, content []byte) error {
	dir := o.dir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	argv := o.command
	if len(argv) == 0 {
		argv = defaultOpenCommand()
	}
	cmd := exec.CommandContext(ctx, argv[0], append(argv[1:], path)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open report %s: %w", path, err)
	}
	return cmd.Process.Release()
}

func defaultOpenCommand() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"open"}
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler"}
	default:
		return []string{"xdg-open"}
	}
}

package worker

import (
	"fmt"
	"os"
	"os/exec"
)

// spawnDetached starts argv in the background with stdio detached and its
// own process group, so the worker outlives the hook process that started
// it and is not killed when the host kills the hook.
func spawnDetached(argv []string, env []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty worker command")
	}
	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // command comes from the user's settings file
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

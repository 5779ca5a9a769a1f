package daemon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nomadcxx/anipar/internal/reporter"
)

// HookTimeout bounds a single on_report command
const HookTimeout = 30 * time.Second

// NotifyReport runs the on_report command for a freshly written report.
// The JSON report path is appended to the arguments and both report paths
// are exported as ANIPAR_REPORT and ANIPAR_REPORT_TEXT.
func (d *Daemon) NotifyReport(ctx context.Context, files reporter.Files) error {
	argv := d.config.Daemon.OnReport
	if len(argv) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, HookTimeout)
	defer cancel()

	args := append(append([]string{}, argv[1:]...), files.JSON)
	cmd := exec.CommandContext(ctx, argv[0], args...)
	cmd.Env = append(os.Environ(),
		"ANIPAR_REPORT="+files.JSON,
		"ANIPAR_REPORT_TEXT="+files.Text,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("on_report command %s failed: %w: %s", argv[0], err, output)
	}

	log.Debug().Str("command", argv[0]).Str("report", files.JSON).Msg("ran on_report hook")
	return nil
}

package supervisor

import (
	"fmt"
	"path/filepath"

	"github.com/pithecene-io/thence/worker"
)

// layout computes the on-disk paths for one run, matching the external
// interfaces section: capsules/, leases/, worktrees/ all nest under the
// run root.
type layout struct {
	runRoot string
	appName string
}

func (l layout) capsuleFile(taskID string, attempt int, role worker.Role) string {
	return filepath.Join(l.runRoot, "capsules", taskID, fmt.Sprintf("attempt%d", attempt), string(role)+".json")
}

func (l layout) resultFile(taskID string, attempt int, role worker.Role) string {
	return worker.ResultFilePath(l.runRoot, taskID, attempt, role)
}

func (l layout) promptFile(taskID string, attempt int, role worker.Role) string {
	return filepath.Join(l.runRoot, "capsules", taskID, fmt.Sprintf("attempt%d", attempt), string(role)+"_prompt.txt")
}

func (l layout) worktree(taskID string, attempt int, workerID string) string {
	return filepath.Join(l.runRoot, "worktrees", l.appName, taskID, fmt.Sprintf("v%d", attempt), workerID)
}

func (l layout) specFile() string {
	return filepath.Join(l.runRoot, "spec.md")
}

func (l layout) planFile() string {
	return filepath.Join(l.runRoot, "plan.spl")
}

func (l layout) translatedPlanFile() string {
	return filepath.Join(l.runRoot, "translated_plan.json")
}

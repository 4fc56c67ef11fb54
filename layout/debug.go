package layout

import (
	"os"

	"github.com/goccy/go-json"
)

// WriteDebugJSON 将布局计划输出为 JSON，便于调试或对照预览。
func WriteDebugJSON(plan *Plan, path string) error {
	if plan == nil {
		return nil
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

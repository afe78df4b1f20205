package led

import (
	"os"
	"strings"

	"github.com/smazurov/vop2ctl/internal/devicetree"
	"github.com/smazurov/vop2ctl/internal/logging"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// board maps a device tree model substring to its LED class names.
type board struct {
	match string
	leds  map[string]string
}

// boards carrying an RK3566 or RK3568. Boards without user LEDs, such as
// the PineTab2, fall through to the no-op controller.
var boards = []board{
	{match: "Quartz64 Model A", leds: map[string]string{"system": "work-led", "user": "diy-led"}},
	{match: "Quartz64 Model B", leds: map[string]string{"system": "user-led"}},
	{match: "SOQuartz", leds: map[string]string{"system": "work-led", "user": "diy-led"}},
	{match: "ROCK3 Model A", leds: map[string]string{"system": "user-led"}},
	{match: "NanoPi R5S", leds: map[string]string{"system": "sys", "user": "wan"}},
}

// boardLEDs returns the LED table for a device tree model, or nil.
func boardLEDs(model string) map[string]string {
	for _, b := range boards {
		if strings.Contains(model, b.match) {
			return b.leds
		}
	}
	return nil
}

// New returns a controller for the running board, or a no-op controller
// when the board has no known LEDs.
func New(logger logging.Logger) Controller {
	model := detectBoard()
	if leds := boardLEDs(model); leds != nil {
		logger.Info("Using sysfs LED controller", "board_model", model, "leds", len(leds))
		return newSysfs(sysfsLEDPath, leds)
	}
	logger.Info("No LED support for board, using no-op controller", "board_model", model)
	return newNoop(logger)
}

// detectBoard takes the model from the boot FDT blob, falling back to the
// NUL-terminated procfs copy.
func detectBoard() string {
	if info, err := devicetree.Load(devicetree.DefaultPath); err == nil && info.Model != "" {
		return info.Model
	}
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}

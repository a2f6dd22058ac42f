// Package status decodes the tag-length-value status payload a printer
// returns for the "st" command into typed values. Grounded on
// original_source/ez_reset/status.py, whose enum classes use Python's
// Enum._missing_ hook to fall back to a sentinel member on an unknown
// raw value; here that becomes an explicit fromRaw constructor per type.
package status

// PrinterState is the printer's current activity. Values and names come
// from the open-source epson-inkjet-escpr driver, per status.py's
// module docstring.
type PrinterState int

const (
	StateError           PrinterState = 0x00
	StateSelfPrinting    PrinterState = 0x01
	StateBusy            PrinterState = 0x02
	StateWaiting         PrinterState = 0x03
	StateIdle            PrinterState = 0x04
	StatePause           PrinterState = 0x05
	StateInkDrying       PrinterState = 0x06
	StateCleaning        PrinterState = 0x07
	StateFactoryShipment PrinterState = 0x08
	StateMotorDriveOff   PrinterState = 0x09
	StateShutdown        PrinterState = 0x0A
	StateWaitPaperInit   PrinterState = 0x0B
	StateInitPaper       PrinterState = 0x0C
)

func printerStateFromRaw(v byte) PrinterState {
	switch PrinterState(v) {
	case StateSelfPrinting, StateBusy, StateWaiting, StateIdle, StatePause,
		StateInkDrying, StateCleaning, StateFactoryShipment, StateMotorDriveOff,
		StateShutdown, StateWaitPaperInit, StateInitPaper:
		return PrinterState(v)
	default:
		return StateError
	}
}

// PrinterError is the active error condition, or None.
type PrinterError int

const (
	ErrorNone                    PrinterError = -1
	ErrorFatal                   PrinterError = 0x00
	ErrorInterface               PrinterError = 0x01
	ErrorPaperJam                PrinterError = 0x04
	ErrorInkOut                  PrinterError = 0x05
	ErrorPaperOut                PrinterError = 0x06
	ErrorPaperSize               PrinterError = 0x0A
	ErrorPaperPath               PrinterError = 0x0C
	ErrorServiceReq              PrinterError = 0x10
	ErrorDoubleFeed              PrinterError = 0x12
	ErrorInkCoverOpen            PrinterError = 0x1A
	ErrorNoMaintenanceBox        PrinterError = 0x22
	ErrorCoverOpen               PrinterError = 0x25
	ErrorNoTray                  PrinterError = 0x29
	ErrorCardLoading             PrinterError = 0x2A
	ErrorCDDVDConfig             PrinterError = 0x2B
	ErrorCartridgeOverflow       PrinterError = 0x2C
	ErrorBatteryVoltage          PrinterError = 0x2F
	ErrorBatteryTemperature      PrinterError = 0x30
	ErrorBatteryEmpty            PrinterError = 0x31
	ErrorShutoff                 PrinterError = 0x32
	ErrorNotInitialFill          PrinterError = 0x33
	ErrorPrintPackEnd            PrinterError = 0x34
	ErrorMaintenanceBoxCoverOpen PrinterError = 0x36
	ErrorScannerOpen             PrinterError = 0x37
	ErrorCDRGuideOpen            PrinterError = 0x38
	ErrorCDRExist                PrinterError = 0x44
	ErrorCDRExistMainte          PrinterError = 0x45
	ErrorTrayClose               PrinterError = 0x46
)

func printerErrorFromRaw(v byte) PrinterError {
	switch PrinterError(v) {
	case ErrorFatal, ErrorInterface, ErrorPaperJam, ErrorInkOut, ErrorPaperOut,
		ErrorPaperSize, ErrorPaperPath, ErrorServiceReq, ErrorDoubleFeed,
		ErrorInkCoverOpen, ErrorNoMaintenanceBox, ErrorCoverOpen, ErrorNoTray,
		ErrorCardLoading, ErrorCDDVDConfig, ErrorCartridgeOverflow,
		ErrorBatteryVoltage, ErrorBatteryTemperature, ErrorBatteryEmpty,
		ErrorShutoff, ErrorNotInitialFill, ErrorPrintPackEnd,
		ErrorMaintenanceBoxCoverOpen, ErrorScannerOpen, ErrorCDRGuideOpen,
		ErrorCDRExist, ErrorCDRExistMainte, ErrorTrayClose:
		return PrinterError(v)
	default:
		return ErrorFatal
	}
}

// PaperPath identifies the media source currently feeding the printer.
type PaperPath int

const (
	PaperPathUnknown  PaperPath = -1
	PaperPathRoll     PaperPath = 0x00
	PaperPathFanfold  PaperPath = 0x01
	PaperPathRollBack PaperPath = 0x02
)

func paperPathFromRaw(v int) PaperPath {
	switch PaperPath(v) {
	case PaperPathRoll, PaperPathFanfold, PaperPathRollBack:
		return PaperPath(v)
	default:
		return PaperPathUnknown
	}
}

// ConsumableStatus classifies a ConsumableLevel's health.
type ConsumableStatus int

const (
	ConsumableOkay ConsumableStatus = iota
	ConsumableEmpty
	ConsumableMissing
	ConsumableFail
	ConsumableUnknown
)

// ConsumableLevel is a percentage-style reading (ink tank, maintenance
// box) paired with a coarse status classification.
type ConsumableLevel struct {
	Level  int
	Status ConsumableStatus
}

// consumableLevelFromRaw maps a raw status byte (widened to int to
// accommodate the out-of-range branch) to a level/status pair, per
// status.py's ConsumableLevel.from_int.
func consumableLevelFromRaw(v int) ConsumableLevel {
	switch {
	case v == 110:
		return ConsumableLevel{Level: -1, Status: ConsumableMissing}
	case v == 105:
		return ConsumableLevel{Level: -1, Status: ConsumableUnknown}
	case v < 0 || v > 100:
		return ConsumableLevel{Level: -1, Status: ConsumableFail}
	case v == 0:
		return ConsumableLevel{Level: 0, Status: ConsumableEmpty}
	default:
		return ConsumableLevel{Level: v, Status: ConsumableOkay}
	}
}

// InkColor names one ink channel in a multi-tank printer.
type InkColor int

const (
	InkUnknown        InkColor = -1
	InkBlack          InkColor = 0
	InkCyan           InkColor = 1
	InkMagenta        InkColor = 2
	InkYellow         InkColor = 3
	InkLightCyan      InkColor = 4
	InkLightMagenta   InkColor = 5
	InkDarkYellow     InkColor = 6
	InkGray           InkColor = 7
	InkLightBlack     InkColor = 8
	InkRed            InkColor = 9
	InkBlue           InkColor = 10
	InkGlossOptimizer InkColor = 11
	InkLightGray      InkColor = 12
	InkOrange         InkColor = 13
)

func inkColorFromRaw(v byte) InkColor {
	switch InkColor(v) {
	case InkBlack, InkCyan, InkMagenta, InkYellow, InkLightCyan, InkLightMagenta,
		InkDarkYellow, InkGray, InkLightBlack, InkRed, InkBlue, InkGlossOptimizer,
		InkLightGray, InkOrange:
		return InkColor(v)
	default:
		return InkUnknown
	}
}

// InkLevel is one ink tank's reading: a ConsumableLevel plus which
// color channel it belongs to.
type InkLevel struct {
	ConsumableLevel
	Color InkColor
}

// inkLevelFromEntry parses one ink level window (the entry-size byte that
// precedes the windows is consumed by the caller): byte 1 is the color,
// byte 2 is the raw level, and byte 0 is not read. Grounded on
// status.py's InkLevel.from_bytes.
func inkLevelFromEntry(entry []byte) InkLevel {
	return InkLevel{
		ConsumableLevel: consumableLevelFromRaw(int(entry[2])),
		Color:           inkColorFromRaw(entry[1]),
	}
}

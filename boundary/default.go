package boundary

var defaultAdapter = NewAdapter(nil)

// Default returns the process-wide adapter the package-level functions use.
func Default() *Adapter {
	return defaultAdapter
}

func InitStorage(memoryBudget uint64) error { return defaultAdapter.InitStorage(memoryBudget) }

func ShutdownStorage() error { return defaultAdapter.ShutdownStorage() }

func SetTempDirectory(path, subpath string) error {
	return defaultAdapter.SetTempDirectory(path, subpath)
}

func SpilledBytes() uint64 { return defaultAdapter.SpilledBytes() }

func CreatePriority(sizeClass int) (int64, error) { return defaultAdapter.CreatePriority(sizeClass) }

func CreateFIFO(sizeClass int) (int64, error) { return defaultAdapter.CreateFIFO(sizeClass) }

func Destroy(handle int64) error { return defaultAdapter.Destroy(handle) }

func PriorityPush(handle int64, priority float64, payload []byte) error {
	return defaultAdapter.PriorityPush(handle, priority, payload)
}

func PriorityTop(handle int64) (float64, []byte, error) { return defaultAdapter.PriorityTop(handle) }

func PriorityTopInto(handle int64, buf []byte) (float64, error) {
	return defaultAdapter.PriorityTopInto(handle, buf)
}

func PriorityPop(handle int64) error { return defaultAdapter.PriorityPop(handle) }

func PrioritySize(handle int64) (uint64, error) { return defaultAdapter.PrioritySize(handle) }

func PriorityIsEmpty(handle int64) (bool, error) { return defaultAdapter.PriorityIsEmpty(handle) }

func FIFOPush(handle int64, payload []byte) error { return defaultAdapter.FIFOPush(handle, payload) }

func FIFOFront(handle int64) ([]byte, error) { return defaultAdapter.FIFOFront(handle) }

func FIFOFrontInto(handle int64, buf []byte) error { return defaultAdapter.FIFOFrontInto(handle, buf) }

func FIFOPop(handle int64) error { return defaultAdapter.FIFOPop(handle) }

func FIFOSize(handle int64) (uint64, error) { return defaultAdapter.FIFOSize(handle) }

func FIFOIsEmpty(handle int64) (bool, error) { return defaultAdapter.FIFOIsEmpty(handle) }

package logx

func ExampleLogger_usage() {
	runner := NewLogger("runner")
	runner.Info("===== %s started =====", "Data Split Stage")
	runner.Debug("shuffling %d rows", 1000)
	runner.Warn("zip already present, skipping download")
	runner.Error("Data Split Stage failed: %v", "[VLD_EX_001] missing file")

	split := runner.WithComponent("stages.split")
	split.Info("wrote %d split files", 6)
}

package main

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
)

type VersionCmd struct{}

func (VersionCmd) Run(*Globals) error {
	fmt.Println(versionJSON())
	return nil
}

func versionJSON() string {
	metadata := map[string]string{
		"name":     "spillq",
		"version":  "(devel)",
		"compiler": runtime.Version(),
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		metadata["version"] = info.Main.Version
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				metadata["hash"] = s.Value
			case "vcs.time":
				metadata["build_time"] = s.Value
			}
		}
	}

	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"runtime"

	"go.uber.org/zap"
)

// memUsage reports the heap of the process in MiB
func memUsage() []zap.Field {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	// For info on each, see: https://golang.org/pkg/runtime/#MemStats
	bToMb := func(b uint64) uint64 {
		return b / 1024 / 1024
	}
	return []zap.Field{
		zap.Uint64("allocMiB", bToMb(m.Alloc)),
		zap.Uint64("totalAllocMiB", bToMb(m.TotalAlloc)),
		zap.Uint64("sysMiB", bToMb(m.Sys)),
		zap.Uint32("numGC", m.NumGC),
	}
}

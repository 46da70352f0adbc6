// Copyright © 2017 Microsoft <wastore@microsoft.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wastore/membuf/common"
)

var membufEnable bool
var membufLogLevel string
var membufMaxResidentMB int64

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Version: common.Version,
	Use:     "membuf",
	Short:   "membuf streams a file through a memory-backed prebuffering cache",
	Long: `membuf is a small command-line harness around the prebuffer package.
It streams a real or synthetic source through a Filter, exercising its
read path and its progress reporting (Read, CachedSize, Size,
ResidentBytes, PrebufferFinished).`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetUsageTemplate(strings.Replace((&cobra.Command{}).UsageTemplate(), "Global Flags", "Flags Applying to All Commands", -1))

	rootCmd.PersistentFlags().BoolVar(&membufEnable, "membuf-enable", true, "Enable the prebuffering filter. When false, the filter refuses to engage and cat exits with that error.")
	rootCmd.PersistentFlags().StringVar(&membufLogLevel, "log-level", "none", "Minimum severity logged to stderr: none, fatal, panic, error, warning, info, debug.")
	rootCmd.PersistentFlags().Int64Var(&membufMaxResidentMB, "max-resident-mb", 0, "Informational cap, in MiB, on resident prebuffer bytes reported by the cache limiter. Zero means unbounded; the filter never evicts or refuses to fill regardless of this value.")
}

func parseLogLevel(s string) common.LogLevel {
	switch strings.ToLower(s) {
	case "fatal":
		return common.LogFatal
	case "panic":
		return common.LogPanic
	case "error":
		return common.LogError
	case "warning", "warn":
		return common.LogWarning
	case "info":
		return common.LogInfo
	case "debug":
		return common.LogDebug
	default:
		return common.LogNone
	}
}

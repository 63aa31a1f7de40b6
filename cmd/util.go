// Copyright © 2018-2020 Wei Shen <shenwei356@gmail.com>
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
	"fmt"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/shenwei356/breader"
	"github.com/shenwei356/go-logging"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
)

// VERSION is the CLI's own version string, embedded in the root command's
// long help.
const VERSION = "0.1.0"

// extDataFile is the suffix expected on output database directories; a
// bare name passed to -o gets this appended unless it already names "-".
const extDataFile = ".meryl"

var log = logging.MustGetLogger("meryl")

// checkError logs a fatal error and exits. Library code (count/, meryldb/)
// never calls this; only cmd/ does, at the edge of the program.
func checkError(err error) {
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func isStdin(file string) bool {
	return file == "-"
}

func isStdout(file string) bool {
	return file == "-"
}

// Options holds the persistent flags shared by every subcommand.
type Options struct {
	NumCPUs  int
	Verbose  bool
	Compress bool
}

func getOptions(cmd *cobra.Command) *Options {
	return &Options{
		NumCPUs:  getFlagPositiveInt(cmd, "threads"),
		Verbose:  getFlagBool(cmd, "verbose"),
		Compress: !getFlagBool(cmd, "no-compress"),
	}
}

func getFlagInt(cmd *cobra.Command, flag string) int {
	v, err := cmd.Flags().GetInt(flag)
	checkError(err)
	return v
}

func getFlagPositiveInt(cmd *cobra.Command, flag string) int {
	v := getFlagInt(cmd, flag)
	if v <= 0 {
		checkError(fmt.Errorf("value of --%s should be positive", flag))
	}
	return v
}

func getFlagNonNegativeInt(cmd *cobra.Command, flag string) int {
	v := getFlagInt(cmd, flag)
	if v < 0 {
		checkError(fmt.Errorf("value of --%s should be non-negative", flag))
	}
	return v
}

func getFlagUint64(cmd *cobra.Command, flag string) uint64 {
	v, err := cmd.Flags().GetUint64(flag)
	checkError(err)
	return v
}

func getFlagBool(cmd *cobra.Command, flag string) bool {
	v, err := cmd.Flags().GetBool(flag)
	checkError(err)
	return v
}

func getFlagString(cmd *cobra.Command, flag string) string {
	v, err := cmd.Flags().GetString(flag)
	checkError(err)
	return v
}

func getFlagStringSlice(cmd *cobra.Command, flag string) []string {
	v, err := cmd.Flags().GetStringSlice(flag)
	checkError(err)
	return v
}

func getFlagFloat64(cmd *cobra.Command, flag string) float64 {
	v, err := cmd.Flags().GetFloat64(flag)
	checkError(err)
	return v
}

// expandPath expands a leading "~" the way Bash would, used for both
// --infile-list files and database directory arguments.
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}

func checkFiles(suffix string, files ...string) {
	for _, file := range files {
		if isStdin(file) {
			continue
		}
		file = expandPath(file)
		ok, err := pathutil.Exists(file)
		if err != nil {
			checkError(fmt.Errorf("fail to read file %s: %s", file, err))
		}
		if !ok {
			checkError(fmt.Errorf("file does not exist: %s", file))
		}
		if suffix != "" && !strings.HasSuffix(file, suffix) {
			checkError(fmt.Errorf("input should be stdin or a %s directory: %s", suffix, file))
		}
	}
}

// getFileListFromFile reads one file path per line, using breader for
// buffered/concurrent line reads.
func getFileListFromFile(file string) ([]string, error) {
	fn := func(line string) (interface{}, bool, error) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			return nil, false, nil
		}
		return expandPath(line), true, nil
	}
	reader, err := breader.NewBufferedReader(file, 2, 100, fn)
	if err != nil {
		return nil, err
	}

	var files []string
	for chunk := range reader.Ch {
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		for _, data := range chunk.Data {
			files = append(files, data.(string))
		}
	}
	return files, nil
}

// getFileListFromArgsAndFile resolves the input file list: either the
// positional args, or (when --infile-list is set) the contents of that
// file, falling back to stdin ("-") when nothing else was given.
func getFileListFromArgsAndFile(cmd *cobra.Command, args []string, checkExist bool, infileListFlag string) []string {
	var files []string

	listFile := getFlagString(cmd, infileListFlag)
	if listFile != "" {
		var err error
		files, err = getFileListFromFile(listFile)
		checkError(err)
	} else {
		files = args
	}

	if len(files) == 0 {
		files = []string{"-"}
	}

	if checkExist {
		for _, file := range files {
			if isStdin(file) {
				continue
			}
			ok, err := pathutil.Exists(expandPath(file))
			checkError(err)
			if !ok {
				checkError(fmt.Errorf("input file does not exist: %s", file))
			}
		}
	}

	return files
}

// outFileName appends extDataFile to a non-stdout database-directory name.
func outFileName(outFile string) string {
	if isStdout(outFile) {
		return outFile
	}
	if strings.HasSuffix(outFile, extDataFile) {
		return outFile
	}
	return outFile + extDataFile
}

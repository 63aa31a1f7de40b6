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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dsnet/compress/bzip2"
	gzip "github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// outStream opens file for writing ("-" means stdout), wrapping it in a
// parallel gzip writer when gzipped is set. Only gzip is supported on the
// write side (bzip2/xz are read-only transports here, matching the
// original tool's own behavior of only ever producing gzip output).
func outStream(file string, gzipped bool) (*bufio.Writer, io.WriteCloser, *os.File, error) {
	var err error
	var w *os.File
	if isStdout(file) {
		w = os.Stdout
	} else {
		w, err = os.Create(file)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("fail to write %s: %s", file, err)
		}
	}

	if gzipped {
		gw := gzip.NewWriter(w)
		return bufio.NewWriterSize(gw, os.Getpagesize()), gw, w, nil
	}
	return bufio.NewWriterSize(w, os.Getpagesize()), nil, w, nil
}

// inStream opens file for reading ("-" means stdin), transparently
// unwrapping gzip/bzip2/xz by sniffing the stream's magic bytes.
func inStream(file string) (*bufio.Reader, *os.File, error) {
	var err error
	var r *os.File
	if isStdin(file) {
		if !detectStdin() {
			return nil, nil, errors.New("stdin not detected")
		}
		r = os.Stdin
	} else {
		r, err = os.Open(file)
		if err != nil {
			return nil, nil, fmt.Errorf("fail to read %s: %s", file, err)
		}
	}

	br := bufio.NewReaderSize(r, os.Getpagesize())

	switch {
	case checkMagic(br, []byte{0x1f, 0x8b}):
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, r, fmt.Errorf("fail to create gzip reader for %s: %s", file, err)
		}
		br = bufio.NewReaderSize(gr, os.Getpagesize())
	case checkMagic(br, []byte{0x42, 0x5a, 0x68}): // "BZh"
		bzr, err := bzip2.NewReader(br, nil)
		if err != nil {
			return nil, r, fmt.Errorf("fail to create bzip2 reader for %s: %s", file, err)
		}
		br = bufio.NewReaderSize(bzr, os.Getpagesize())
	case checkMagic(br, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}):
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, r, fmt.Errorf("fail to create xz reader for %s: %s", file, err)
		}
		br = bufio.NewReaderSize(xr, os.Getpagesize())
	}

	return br, r, nil
}

func checkMagic(b *bufio.Reader, magic []byte) bool {
	m, err := b.Peek(len(magic))
	if err != nil {
		return false
	}
	for i := range magic {
		if m[i] != magic[i] {
			return false
		}
	}
	return true
}

func detectStdin() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

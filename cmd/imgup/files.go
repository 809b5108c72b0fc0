package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"imgup/internal/format"
)

var errInvalidDeleteSeconds = errors.New("invalid delete seconds")

// collectFiles returns the upload list: -f files, then NUL-separated paths
// from stdin, then the arguments after "--".
func collectFiles(flagFiles []string, stdin io.Reader, readNull bool, args []string, argsLenAtDash int) ([]string, error) {
	if len(args) > 0 && argsLenAtDash != 0 {
		unexpected := args
		if argsLenAtDash > 0 {
			unexpected = args[:argsLenAtDash]
		}
		return nil, withExitCode(exitUsage, fmt.Errorf("unexpected argument %q (put files after -- or use -f)", unexpected[0]))
	}

	files := append([]string(nil), flagFiles...)
	if readNull {
		fromStdin, err := readNullSeparated(stdin)
		if err != nil {
			return nil, withExitCode(exitUsage, fmt.Errorf("read file list from stdin: %w", err))
		}
		files = append(files, fromStdin...)
	}
	files = append(files, args...)
	return files, nil
}

func readNullSeparated(r io.Reader) ([]string, error) {
	if r == nil {
		return nil, nil
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitNull)

	var paths []string
	for scanner.Scan() {
		path := scanner.Text()
		if path == "" {
			continue
		}
		paths = append(paths, path)
	}
	return paths, scanner.Err()
}

func splitNull(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// validateFiles checks that every path names an existing regular file.
func validateFiles(files []string) error {
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return withExitCode(exitUsage, fmt.Errorf("file not found: %s", path))
			}
			return withExitCode(exitUsage, err)
		}
		if !info.Mode().IsRegular() {
			return withExitCode(exitUsage, fmt.Errorf("not a regular file: %s", path))
		}
	}
	return nil
}

func parseDeleteSeconds(raw string) (time.Duration, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, nil
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q is not a non-negative integer", errInvalidDeleteSeconds, raw)
		}
	}
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil || seconds > int64((1<<63-1)/int64(time.Second)) {
		return 0, fmt.Errorf("%w: %q is out of range", errInvalidDeleteSeconds, raw)
	}
	return time.Duration(seconds) * time.Second, nil
}

type linkSettings struct {
	linkType format.LinkType
	size     format.DisplaySize
}

func resolveLinkSettings(flagType, flagSize, cfgType, cfgSize string) (linkSettings, error) {
	rawType := flagType
	if strings.TrimSpace(rawType) == "" {
		rawType = cfgType
	}
	linkType, err := format.ParseLinkType(rawType)
	if err != nil {
		return linkSettings{}, err
	}

	rawSize := flagSize
	if strings.TrimSpace(rawSize) == "" {
		rawSize = cfgSize
	}
	size, err := format.ParseDisplaySize(rawSize)
	if err != nil {
		return linkSettings{}, err
	}
	return linkSettings{linkType: linkType, size: size}, nil
}

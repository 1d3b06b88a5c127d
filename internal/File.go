/*
Copyright 2011-2024 Frederic Langlet
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package internal

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/exp/slices"
)

// FSE_EXTENSION is appended to the name of compressed files
const FSE_EXTENSION = ".fse"

var _RESERVED_NAMES = []string{"AUX", "COM0", "COM1", "COM2", "COM3", "COM4", "COM5", "COM6",
	"COM7", "COM8", "COM9", "COM¹", "COM²", "COM³", "CON", "LPT0", "LPT1", "LPT2",
	"LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9", "NUL", "PRN"}

// FileData a basic structure encapsulating a file path and size
type FileData struct {
	FullPath string
	Path     string
	Name     string
	Size     int64
}

// NewFileData creates an instance of FileData from a file path and size
func NewFileData(fullPath string, size int64) *FileData {
	this := &FileData{}
	this.FullPath = fullPath
	this.Size = size
	this.Path, this.Name = filepath.Split(fullPath)
	return this
}

// FileCompare a structure used to sort files by path
type FileCompare struct {
	data []FileData
}

// NewFileCompare creates a sort.Interface over the file data
func NewFileCompare(data []FileData) *FileCompare {
	return &FileCompare{data: data}
}

// Len returns the size of the internal file data buffer
func (this FileCompare) Len() int {
	return len(this.data)
}

// Swap swaps two file data in the internal buffer
func (this FileCompare) Swap(i, j int) {
	this.data[i], this.data[j] = this.data[j], this.data[i]
}

// Less orders files by full path
func (this FileCompare) Less(i, j int) bool {
	return strings.Compare(this.data[i].FullPath, this.data[j].FullPath) < 0
}

func isDotFile(path string) bool {
	name := filepath.Base(path)
	return len(name) > 1 && name[0] == '.' && name != ".."
}

// CreateFileList appends the regular files found at target to fileList.
// Directories are walked recursively when isRecursive is set, otherwise
// only their immediate regular files are listed.
func CreateFileList(target string, fileList []FileData, isRecursive, ignoreDotFiles bool) ([]FileData, error) {
	fi, err := os.Stat(target)

	if err != nil {
		return fileList, err
	}

	if fi.Mode().IsRegular() {
		if ignoreDotFiles == false || isDotFile(target) == false {
			fileList = append(fileList, *NewFileData(target, fi.Size()))
		}

		return fileList, nil
	}

	if isRecursive == true {
		err = filepath.WalkDir(target, func(path string, de fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if ignoreDotFiles == true && path != target && isDotFile(path) == true {
				if de.IsDir() {
					return filepath.SkipDir
				}

				return nil
			}

			if de.Type().IsRegular() {
				info, err := de.Info()

				if err != nil {
					return err
				}

				fileList = append(fileList, *NewFileData(path, info.Size()))
			}

			return nil
		})

		return fileList, err
	}

	entries, err := os.ReadDir(target)

	if err != nil {
		return fileList, err
	}

	for _, de := range entries {
		if de.Type().IsRegular() == false || (ignoreDotFiles == true && isDotFile(de.Name()) == true) {
			continue
		}

		info, err := de.Info()

		if err != nil {
			return fileList, err
		}

		fileList = append(fileList, *NewFileData(filepath.Join(target, de.Name()), info.Size()))
	}

	return fileList, nil
}

// IsReservedName returns true if the file name is reserved by the OS
func IsReservedName(fileName string) bool {
	if runtime.GOOS != "windows" {
		return false
	}

	base := strings.ToUpper(strings.TrimSuffix(fileName, filepath.Ext(fileName)))
	return slices.Contains(_RESERVED_NAMES, base)
}

// CompressedName returns the name of the compressed version of a file
func CompressedName(fileName string) string {
	return fileName + FSE_EXTENSION
}

// DecompressedName returns the name of the decompressed version of a file.
// Names without the compressed file extension get a '.out' suffix.
func DecompressedName(fileName string) string {
	if strings.HasSuffix(fileName, FSE_EXTENSION) && len(fileName) > len(FSE_EXTENSION) {
		return strings.TrimSuffix(fileName, FSE_EXTENSION)
	}

	return fileName + ".out"
}

// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"fmt"
	"path"
	"strings"
)

// toSlash converts both separator styles to '/', independent of the host OS.
func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// DestinationPath maps a local file to its repository path:
// destDir + "/" + (filePath relative to sourceRoot), always '/'-separated.
// An empty destDir places the file at its relative path.
func DestinationPath(sourceRoot, destDir, filePath string) (string, error) {
	root := path.Clean(toSlash(sourceRoot))
	file := path.Clean(toSlash(filePath))

	var rel string
	switch {
	case root == ".":
		rel = file
	case root == "/":
		rel = strings.TrimPrefix(file, "/")
	case strings.HasPrefix(file, root+"/"):
		rel = file[len(root)+1:]
	default:
		return "", fmt.Errorf("%s is not under source root %s", filePath, sourceRoot)
	}
	if rel == "" || rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is not a file under source root %s", filePath, sourceRoot)
	}
	return joinDest(destDir, rel), nil
}

func joinDest(destDir, rel string) string {
	dir := strings.Trim(toSlash(destDir), "/")
	if dir == "" {
		return rel
	}
	return dir + "/" + rel
}

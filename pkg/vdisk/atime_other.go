/*
Copyright © contributors to diskshrink.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

//go:build !linux && !darwin

package vdisk

import (
	"os"
	"time"
)

// accessTime falls back to the modification time on platforms without
// portable access-time stat data.
func accessTime(info os.FileInfo) time.Time {
	return info.ModTime()
}

/*
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

package log

import (
	"encoding/json"
	"fmt"
)

const (
	LinePrefix = ""
	IndentSize = "    "
)

func Pretty(object interface{}) string {
	if data, err := json.MarshalIndent(object, LinePrefix, IndentSize); err != nil {
		return fmt.Errorf("failed to print pretty string for object, %w", err).Error()
	} else {
		return string(data)
	}
}

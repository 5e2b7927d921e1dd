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

package testing

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/autoscaler-playground/autoscaler/pkg/utils/log"
)

// TestContextWithLogger returns a context carrying a logger that writes through the test's output
func TestContextWithLogger(t testing.TB) context.Context {
	return log.IntoContext(context.Background(), log.FromZap(zaptest.NewLogger(t)))
}

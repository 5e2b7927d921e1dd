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

package main

import (
	"os"

	"sigs.k8s.io/controller-runtime/pkg/manager/signals"

	"github.com/autoscaler-playground/autoscaler/pkg/operator"
	"github.com/autoscaler-playground/autoscaler/pkg/utils/log"
)

func main() {
	ctx, op := operator.NewOperator(signals.SetupSignalHandler())
	if err := op.Start(ctx); err != nil {
		log.FromContext(ctx).Error(err, "autoscaler exited with an error")
		os.Exit(1)
	}
	log.FromContext(ctx).Info("autoscaler stopped")
}

package vm

import (
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

// log is the runtime's diagnostic sink. Runtime errors are reported at
// error level, collection cycles at debug level.
var log = commonlog.GetLogger("hatchvm.vm")

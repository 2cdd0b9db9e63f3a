package pipeline

import "time"

// timeNow stamps feedback requests and completions. Tests freeze it.
var timeNow = time.Now

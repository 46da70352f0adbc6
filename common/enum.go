package common

import (
	"reflect"

	"github.com/JeffreyRichter/enum/enum"
)

// SeekClass names which branch of the seek policy a SetPosition call took.
// Logged at LogDebug so a slow seek can be explained from the log alone.
type SeekClass uint8

var ESeekClass = SeekClass(0)

func (SeekClass) ShortSeekAbsorbed() SeekClass  { return SeekClass(0) }
func (SeekClass) WithinBuffer() SeekClass       { return SeekClass(1) }
func (SeekClass) OutOfBuffer() SeekClass        { return SeekClass(2) }
func (SeekClass) Refused() SeekClass            { return SeekClass(3) }

func (sc SeekClass) String() string {
	return enum.StringInt(sc, reflect.TypeOf(sc))
}

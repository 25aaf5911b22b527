package fsbridge

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	fsb "github.com/input-output-hk/catalyst-forge-libs/fs/billy"
)

// ToBillyFilesystem returns the go-billy filesystem behind fsys. Only
// wrappers built by the fs/billy package can be converted.
//
//nolint:ireturn // billy.Filesystem is what go-git and the tree walkers take
func ToBillyFilesystem(fsys fs.Filesystem) (billy.Filesystem, error) {
	billyFS, ok := fsys.(*fsb.FS)
	if !ok {
		return nil, fmt.Errorf("filesystem must be a billy.FS from fs/billy package, got %T", fsys)
	}
	return billyFS.Raw(), nil
}

package checkpointer

import "fmt"

// fileEnumerator enumerates filenames
type fileEnumerator struct {
	i         int
	name      string
	extension string
}

// filename returns the name of the next consecutive enumerated file
func (f *fileEnumerator) filename() string {
	f.i++
	return fmt.Sprintf("%v%v%v", f.name, f.i, f.extension)
}

// FilenameEnumerator returns a function which will return filenames
// with a counter integer suffix. The first call returns the filename
// with suffix start+1, and each later call increments the suffix. The
// filename parameter is the full filename with its path.
func FilenameEnumerator(start int, filename, extension string) func() string {
	enum := fileEnumerator{i: start, name: filename, extension: extension}
	return enum.filename
}

// Fixed returns a function that always returns filename, so that each
// checkpoint overwrites the previous one
func Fixed(filename string) func() string {
	return func() string { return filename }
}

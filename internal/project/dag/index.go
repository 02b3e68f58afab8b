package dag

import "sort"

type NodeID uint32

// FileImports is one file of the project together with the paths of the
// files it imports. Imports pointing outside the project are allowed;
// they become absent nodes and never gate a batch.
type FileImports struct {
	Path    string
	Imports []string
}

type Index struct {
	PathToID map[string]NodeID
	IDToPath []string
}

// собрать уникальные пути, sort.Strings, раздать ID по порядку
func BuildIndex(files []FileImports) Index {
	uniq := make(map[string]struct{}, len(files))
	for _, f := range files {
		if f.Path != "" {
			uniq[f.Path] = struct{}{}
		}
		for _, dep := range f.Imports {
			if dep == "" {
				continue
			}
			uniq[dep] = struct{}{}
		}
	}

	paths := make([]string, 0, len(uniq))
	for path := range uniq {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	pathToID := make(map[string]NodeID, len(paths))
	for i, path := range paths {
		pathToID[path] = NodeID(i)
	}

	return Index{
		PathToID: pathToID,
		IDToPath: paths,
	}
}

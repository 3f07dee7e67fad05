package model

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/mat"

	"leaf-doctor/internal/domain/entity"
)

// LoadWeights читает словарь параметров: zip-архив, одна запись на параметр,
// имя записи = имя слоя, содержимое = mat.Dense в бинарном формате gonum.
func LoadWeights(path string) (map[string]*mat.Dense, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", entity.ErrModelUnavailable, path, err)
	}
	defer zr.Close()

	state := make(map[string]*mat.Dense, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		m, err := readDense(f)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %s: %v", entity.ErrModelUnavailable, f.Name, err)
		}
		state[f.Name] = m
	}
	if len(state) == 0 {
		return nil, fmt.Errorf("%w: %s holds no parameters", entity.ErrModelUnavailable, path)
	}
	return state, nil
}

func readDense(f *zip.File) (*mat.Dense, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var m mat.Dense
	if _, err := m.UnmarshalBinaryFrom(rc); err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveWeights пишет словарь параметров в формате LoadWeights.
func SaveWeights(path string, state map[string]*mat.Dense) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(f)
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w, err := zw.Create(k)
		if err != nil {
			return err
		}
		if _, err := state[k].MarshalBinaryTo(w); err != nil {
			return fmt.Errorf("write %s: %w", k, err)
		}
	}
	return zw.Close()
}

// Load читает веса и собирает сеть. Любая ошибка оборачивает ErrModelUnavailable.
func Load(path, targetLayer string) (*Network, error) {
	state, err := LoadWeights(path)
	if err != nil {
		return nil, err
	}
	n, err := NewNetwork(state, targetLayer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrModelUnavailable, err)
	}
	if n.Classes() != entity.LabelCount {
		return nil, fmt.Errorf("%w: model has %d outputs, want %d", entity.ErrModelUnavailable, n.Classes(), entity.LabelCount)
	}
	return n, nil
}

// ParameterCount сумма элементов всех параметров.
func ParameterCount(state map[string]*mat.Dense) int {
	total := 0
	for _, m := range state {
		r, c := m.Dims()
		total += r * c
	}
	return total
}

package model

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"leaf-doctor/internal/domain/entity"
)

// DefaultTargetLayer последний блок последней стадии.
const DefaultTargetLayer = "stages.-1.blocks.-1"

// InputChannels число каналов входа (RGB).
const InputChannels = 3

// Capture два слота инструментирования: активация целевого слоя и
// градиент логита по ней. Заполняется Instrument, очищается владельцем.
type Capture struct {
	Layer      string
	Activation *entity.Tensor
	Gradient   *entity.Tensor
}

// Reset очищает оба слота.
func (c *Capture) Reset() {
	c.Layer = ""
	c.Activation = nil
	c.Gradient = nil
}

// Network замороженная свёрточная сеть: stem → стадии → пул → голова.
// Веса после загрузки не меняются, Logits безопасен для конкурентных вызовов.
type Network struct {
	layers []layer
	head   *linear
	target int
}

// NewNetwork собирает сеть по словарю параметров. Архитектура выводится
// из имён и форм: stem.*, stages.N.downsample.*, stages.N.blocks.M.*, head.*.
func NewNetwork(state map[string]*mat.Dense, targetLayer string) (*Network, error) {
	used := make(map[string]bool, len(state))
	take := func(key string) *mat.Dense {
		m, ok := state[key]
		if ok {
			used[key] = true
		}
		return m
	}

	stemW := take("stem.weight")
	if stemW == nil {
		return nil, fmt.Errorf("missing stem.weight")
	}
	stem, err := newConv2D("stem", stemW, take("stem.bias"), InputChannels, 0, false)
	if err != nil {
		return nil, err
	}

	n := &Network{layers: []layer{stem}}
	channels := stem.out
	for s := 0; hasPrefix(state, fmt.Sprintf("stages.%d.", s)); s++ {
		prefix := fmt.Sprintf("stages.%d.", s)
		if w := take(prefix + "downsample.weight"); w != nil {
			ds, err := newConv2D(prefix+"downsample", w, take(prefix+"downsample.bias"), channels, 0, false)
			if err != nil {
				return nil, err
			}
			n.layers = append(n.layers, ds)
			channels = ds.out
		}
		for b := 0; ; b++ {
			name := fmt.Sprintf("%sblocks.%d", prefix, b)
			w := take(name + ".weight")
			if w == nil {
				break
			}
			conv, err := newConv2D(name, w, take(name+".bias"), channels, 1, true)
			if err != nil {
				return nil, err
			}
			if conv.out != channels {
				return nil, fmt.Errorf("%s: residual block maps %d channels to %d", name, channels, conv.out)
			}
			n.layers = append(n.layers, &residualBlock{conv: conv})
		}
	}

	headW, headB := take("head.weight"), take("head.bias")
	if headW == nil || headB == nil {
		return nil, fmt.Errorf("missing head.weight or head.bias")
	}
	classes, in := headW.Dims()
	if in != channels {
		return nil, fmt.Errorf("head expects %d features, backbone yields %d", in, channels)
	}
	if r, c := headB.Dims(); r*c != classes {
		return nil, fmt.Errorf("head.bias has %d values, want %d", r*c, classes)
	}
	n.head = &linear{weight: headW, bias: flatten(headB)}

	var unused []string
	for key := range state {
		if !used[key] {
			unused = append(unused, key)
		}
	}
	if len(unused) > 0 {
		sort.Strings(unused)
		return nil, fmt.Errorf("unexpected parameters: %s", strings.Join(unused, ", "))
	}

	if targetLayer == "" {
		targetLayer = DefaultTargetLayer
	}
	if n.target, err = n.resolve(targetLayer); err != nil {
		return nil, err
	}
	return n, nil
}

// Classes число выходных логитов.
func (n *Network) Classes() int {
	classes, _ := n.head.weight.Dims()
	return classes
}

// TargetLayer имя слоя, на котором снимается Grad-CAM.
func (n *Network) TargetLayer() string {
	return n.layers[n.target].Name()
}

// LayerNames имена слоёв в порядке прямого прохода.
func (n *Network) LayerNames() []string {
	names := make([]string, len(n.layers))
	for i, l := range n.layers {
		names[i] = l.Name()
	}
	return names
}

// Logits прямой проход без сохранения промежуточных тензоров.
func (n *Network) Logits(ctx context.Context, input *entity.Tensor) ([]float64, error) {
	if err := n.checkInput(input); err != nil {
		return nil, err
	}
	x := input
	for _, l := range n.layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		y, err := l.Forward(x)
		if err != nil {
			return nil, err
		}
		x = y
	}
	return n.head.Forward(x)
}

// Instrument прямой проход с трассой, затем обратный проход от одного логита
// classIdx до целевого слоя. Результат кладётся в capture.
func (n *Network) Instrument(ctx context.Context, input *entity.Tensor, classIdx int, capture *Capture) error {
	if capture == nil {
		return fmt.Errorf("nil capture")
	}
	if err := n.checkInput(input); err != nil {
		return err
	}

	trace := make([]*entity.Tensor, len(n.layers)+1)
	trace[0] = input
	for i, l := range n.layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		y, err := l.Forward(trace[i])
		if err != nil {
			return err
		}
		trace[i+1] = y
	}
	capture.Layer = n.TargetLayer()
	capture.Activation = trace[n.target+1]

	grad, err := n.head.Backward(trace[len(n.layers)], classIdx)
	if err != nil {
		return err
	}
	for i := len(n.layers) - 1; i > n.target; i-- {
		if grad, err = n.layers[i].Backward(trace[i], trace[i+1], grad); err != nil {
			return err
		}
	}
	capture.Gradient = grad
	return nil
}

func (n *Network) checkInput(input *entity.Tensor) error {
	if err := input.Validate(); err != nil {
		return fmt.Errorf("input tensor: %w", err)
	}
	if input.Channels() != InputChannels {
		return fmt.Errorf("input tensor has %d channels, want %d", input.Channels(), InputChannels)
	}
	return nil
}

// resolve ищет слой по имени; в stages.N.blocks.M допускаются отрицательные индексы.
func (n *Network) resolve(name string) (int, error) {
	parts := strings.Split(name, ".")
	if len(parts) == 4 && parts[0] == "stages" && parts[2] == "blocks" {
		stage, err1 := strconv.Atoi(parts[1])
		block, err2 := strconv.Atoi(parts[3])
		if err1 != nil || err2 != nil {
			return 0, fmt.Errorf("target layer %q: bad index", name)
		}
		stages := n.stageBlocks()
		if stage < 0 {
			stage += len(stages)
		}
		if stage < 0 || stage >= len(stages) {
			return 0, fmt.Errorf("target layer %q: stage out of range", name)
		}
		blocks := stages[stage]
		if block < 0 {
			block += len(blocks)
		}
		if block < 0 || block >= len(blocks) {
			return 0, fmt.Errorf("target layer %q: block out of range", name)
		}
		return blocks[block], nil
	}
	for i, l := range n.layers {
		if l.Name() == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("target layer %q not found", name)
}

// stageBlocks индексы блоков в n.layers, сгруппированные по стадиям.
func (n *Network) stageBlocks() [][]int {
	var stages [][]int
	for i, l := range n.layers {
		b, ok := l.(*residualBlock)
		if !ok {
			continue
		}
		s, _ := strconv.Atoi(strings.Split(b.Name(), ".")[1])
		for len(stages) <= s {
			stages = append(stages, nil)
		}
		stages[s] = append(stages[s], i)
	}
	return stages
}

func hasPrefix(state map[string]*mat.Dense, prefix string) bool {
	for key := range state {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func flatten(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, mat.Row(nil, i, m)...)
	}
	return out
}

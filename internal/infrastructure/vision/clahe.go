package vision

import "math"

// clahe контрастно-ограниченная адаптивная эквализация гистограммы
// одного 8-битного канала. Сетка grid×grid плиток, края отражаются
// (reflect-101), LUT соседних плиток интерполируются билинейно.
func clahe(src []uint8, w, h int, clipLimit float64, grid int) []uint8 {
	tw := (w + grid - 1) / grid
	th := (h + grid - 1) / grid
	area := tw * th

	clip := 0
	if clipLimit > 0 {
		clip = int(clipLimit * float64(area) / 256)
		if clip < 1 {
			clip = 1
		}
	}

	luts := make([][256]uint8, grid*grid)
	scale := 255.0 / float64(area)
	for ty := 0; ty < grid; ty++ {
		for tx := 0; tx < grid; tx++ {
			var hist [256]int
			for y := ty * th; y < (ty+1)*th; y++ {
				row := reflect101(y, h) * w
				for x := tx * tw; x < (tx+1)*tw; x++ {
					hist[src[row+reflect101(x, w)]]++
				}
			}
			if clip > 0 {
				clipHistogram(&hist, clip)
			}
			lut := &luts[ty*grid+tx]
			sum := 0
			for i, c := range hist {
				sum += c
				lut[i] = saturate(float64(sum) * scale)
			}
		}
	}

	dst := make([]uint8, len(src))
	invTW, invTH := 1/float64(tw), 1/float64(th)
	for y := 0; y < h; y++ {
		tyf := float64(y)*invTH - 0.5
		ty1 := int(math.Floor(tyf))
		ty2 := ty1 + 1
		ya := tyf - float64(ty1)
		ty1 = max(ty1, 0)
		ty2 = min(ty2, grid-1)
		for x := 0; x < w; x++ {
			txf := float64(x)*invTW - 0.5
			tx1 := int(math.Floor(txf))
			tx2 := tx1 + 1
			xa := txf - float64(tx1)
			tx1 = max(tx1, 0)
			tx2 = min(tx2, grid-1)

			v := src[y*w+x]
			top := float64(luts[ty1*grid+tx1][v])*(1-xa) + float64(luts[ty1*grid+tx2][v])*xa
			bottom := float64(luts[ty2*grid+tx1][v])*(1-xa) + float64(luts[ty2*grid+tx2][v])*xa
			dst[y*w+x] = saturate(top*(1-ya) + bottom*ya)
		}
	}
	return dst
}

// clipHistogram срезает столбцы выше limit и раздаёт излишек поровну.
func clipHistogram(hist *[256]int, limit int) {
	excess := 0
	for i, c := range hist {
		if c > limit {
			excess += c - limit
			hist[i] = limit
		}
	}
	batch := excess / 256
	residual := excess - batch*256
	for i := range hist {
		hist[i] += batch
	}
	if residual > 0 {
		step := max(256/residual, 1)
		for i := 0; i < 256 && residual > 0; i += step {
			hist[i]++
			residual--
		}
	}
}

// reflect101 отражение индекса без повтора крайнего элемента: -1 → 1, n → n-2.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

package entity

import "fmt"

// LabelCount размер выходного слоя классификатора.
const LabelCount = 8

// Labels классы болезней листа папайи, порядок совпадает с выходом сети.
var Labels = [LabelCount]string{
	"Anthracnose",
	"Bacterial spot",
	"Curl",
	"Healthy",
	"Mealybug",
	"Mite disease",
	"Ringspot",
	"Mosaic",
}

// Label возвращает метку по индексу класса.
func Label(idx int) (string, error) {
	if idx < 0 || idx >= LabelCount {
		return "", fmt.Errorf("class index %d out of range [0,%d)", idx, LabelCount)
	}
	return Labels[idx], nil
}

// IsLabel проверяет, что строка входит в фиксированный список классов.
func IsLabel(s string) bool {
	for _, l := range Labels {
		if l == s {
			return true
		}
	}
	return false
}

package whisper

// langPlan решение по языковым ограничениям для одного вызова инференса.
type langPlan struct {
	// lock - непустой код означает строгую фиксацию одного языка.
	lock string
	// hint - приоритетный язык при рестрикции автоопределения.
	hint string
	// allowed - непустой список означает рестрикцию: декодер может
	// вернуть только один из этих языков.
	allowed []string
}

// planLanguages строит план по списку разрешённых языков.
//
// Пустой список - свободное автоопределение. Один язык - строгая
// фиксация. Дубль первого языка - идиома вызывающей стороны: пара
// одинаковых кодов эквивалентна строгой фиксации, а при трёх и более
// кодах дубль трактуется как приоритетная подсказка, рестрикция по
// оставшемуся списку сохраняется (поведение исходного нативного моста).
func planLanguages(codes []string) langPlan {
	switch {
	case len(codes) == 0:
		return langPlan{}
	case len(codes) == 1:
		return langPlan{lock: codes[0]}
	case codes[0] == codes[1] && len(codes) == 2:
		return langPlan{lock: codes[0]}
	case codes[0] == codes[1]:
		return langPlan{hint: codes[0], allowed: codes[1:]}
	default:
		return langPlan{hint: codes[0], allowed: codes}
	}
}

func containsLang(langs []string, code string) bool {
	for _, l := range langs {
		if l == code {
			return true
		}
	}
	return false
}

package deque

// ArrDeque 基于环形数组实现
type ArrDeque struct {
	arr []float64
	// 头部元素下标
	start int
	// 元素个数
	size int
}

// 工厂方法
func NewArrDeque(capacity int) *ArrDeque {
	if capacity < 1 {
		capacity = 1
	}
	return &ArrDeque{arr: make([]float64, capacity)}
}

func (ad *ArrDeque) Size() int { return ad.size }

func (ad *ArrDeque) Capacity() int { return len(ad.arr) }

func (ad *ArrDeque) IsFull() bool { return ad.size == len(ad.arr) }

func (ad *ArrDeque) IsEmpty() bool { return ad.size == 0 }

func (ad *ArrDeque) index(i int) int {
	if i < 0 || i >= ad.size {
		panic("index out of length")
	}
	return (ad.start + i) % len(ad.arr)
}

func (ad *ArrDeque) Get(i int) float64 { return ad.arr[ad.index(i)] }

func (ad *ArrDeque) Set(i int, v float64) { ad.arr[ad.index(i)] = v }

func (ad *ArrDeque) First() float64 { return ad.Get(0) }

func (ad *ArrDeque) Last() float64 { return ad.Get(ad.size - 1) }

func (ad *ArrDeque) Traverse(f func(i int, v float64)) {
	for i := 0; i < ad.size; i++ {
		f(i, ad.arr[(ad.start+i)%len(ad.arr)])
	}
}

func (ad *ArrDeque) AddLast(v float64) {
	if ad.IsFull() {
		// 挤出最旧的元素
		ad.arr[ad.start] = v
		ad.start = (ad.start + 1) % len(ad.arr)
		return
	}
	ad.arr[(ad.start+ad.size)%len(ad.arr)] = v
	ad.size++
}

func (ad *ArrDeque) AddFirst(v float64) {
	ad.start = (ad.start - 1 + len(ad.arr)) % len(ad.arr)
	ad.arr[ad.start] = v
	if !ad.IsFull() {
		ad.size++
	}
}

func (ad *ArrDeque) RemoveLast() float64 {
	v := ad.Last()
	ad.size--
	return v
}

func (ad *ArrDeque) RemoveFirst() float64 {
	v := ad.First()
	ad.start = (ad.start + 1) % len(ad.arr)
	ad.size--
	return v
}

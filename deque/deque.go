/**
 * 定长双端队列，用于保存牛顿迭代的残差历史
 * 队列满时从尾部加入元素会挤出头部最旧的元素，形成滑动窗口
 */

package deque

type Deque interface {
	// 队列的长度
	Size() int

	// 容量
	Capacity() int

	// 获取队列中对应下标的数值，0 为最旧的元素
	Get(i int) float64

	// 设定队列中对应下标的数值
	Set(i int, v float64)

	// 正向遍历
	Traverse(f func(i int, v float64))

	// 在队列结尾增加一个元素，队列满时挤出头部元素
	AddLast(v float64)

	// 在队列结尾删除一个元素
	RemoveLast() float64

	// 在队列头部增加一个元素，队列满时挤出尾部元素
	AddFirst(v float64)

	// 在队列头部删除一个元素
	RemoveFirst() float64

	First() float64

	Last() float64

	IsFull() bool

	IsEmpty() bool
}

package detconv

import "strconv"

// DefaultSupercategory is used for categories whose source format has no super-category.
const DefaultSupercategory = "Unspecified"

// Category is an object class.
type Category struct {
	ID            int
	Name          string
	Supercategory string
}

type categoryKey struct {
	name, supercategory string
}

// Categories is the de-duplicated registry of the categories in a dataset. The pair of name and
// super-category is unique, IDs are either supplied by the source or assigned sequentially from 1,
// skipping the IDs already taken.
type Categories struct {
	list    []Category
	byKey   map[categoryKey][]int // Indices into list.
	byID    map[int][]int
	maxID   int
	numSupC int
	supC    map[string]bool
}

// NewCategories returns an empty registry.
func NewCategories() *Categories {
	return &Categories{
		byKey: make(map[categoryKey][]int),
		byID:  make(map[int][]int),
		supC:  make(map[string]bool),
	}
}

// Append registers the category unless the (name, supercategory) pair is already known, in which
// case it is a no-op. An empty supercategory means DefaultSupercategory and an id <= 0 selects the
// smallest free ID that is larger than the number of categories.
func (c *Categories) Append(name, supercategory string, id int) {
	if supercategory == "" {
		supercategory = DefaultSupercategory
	}
	key := categoryKey{name, supercategory}
	if len(c.byKey[key]) > 0 {
		return
	}
	if id <= 0 {
		id = len(c.list) + 1
		for len(c.byID[id]) > 0 {
			id++
		}
	}
	c.maxID = max(c.maxID, id)

	if !c.supC[supercategory] {
		c.supC[supercategory] = true
		c.numSupC++
	}

	c.list = append(c.list, Category{ID: id, Name: name, Supercategory: supercategory})
	i := len(c.list) - 1
	c.byKey[key] = append(c.byKey[key], i)
	c.byID[id] = append(c.byID[id], i)
}

// ResolveID returns the ID of the category with the given name and supercategory (empty means
// DefaultSupercategory).
func (c *Categories) ResolveID(name, supercategory string) (int, error) {
	if supercategory == "" {
		supercategory = DefaultSupercategory
	}
	match := c.byKey[categoryKey{name, supercategory}]
	key := strconv.Quote(name) + " in " + strconv.Quote(supercategory)
	switch len(match) {
	case 0:
		return 0, &NotFoundError{What: "category", Key: key}
	case 1:
		return c.list[match[0]].ID, nil
	default:
		return 0, &AmbiguousError{What: "category", Key: key, Count: len(match)}
	}
}

// ResolveName returns the name and supercategory of the category with the given ID.
func (c *Categories) ResolveName(id int) (name, supercategory string, err error) {
	cat, err := c.Get(id)
	if err != nil {
		return "", "", err
	}
	return cat.Name, cat.Supercategory, nil
}

// Get returns the category with the given ID.
func (c *Categories) Get(id int) (Category, error) {
	match := c.byID[id]
	switch len(match) {
	case 0:
		return Category{}, &NotFoundError{What: "category", Key: "ID " + strconv.Itoa(id)}
	case 1:
		return c.list[match[0]], nil
	default:
		return Category{}, &AmbiguousError{What: "category", Key: "ID " + strconv.Itoa(id),
			Count: len(match)}
	}
}

// Len returns the number of classes.
func (c *Categories) Len() int {
	return len(c.list)
}

// NumSupercategories returns the number of distinct super-categories.
func (c *Categories) NumSupercategories() int {
	return c.numSupC
}

// All returns the categories in insertion order. The slice must not be modified.
func (c *Categories) All() []Category {
	return c.list
}

// MaxID returns the largest category ID, or 0 for an empty registry.
func (c *Categories) MaxID() int {
	return c.maxID
}

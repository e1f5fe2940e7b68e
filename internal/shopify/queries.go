package shopify

// GraphQL documents sent to the Storefront API. Selections are kept in
// sync with the wire structs in types.go.

const cartFields = `
  id
  checkoutUrl
  totalQuantity
  cost {
    subtotalAmount { amount currencyCode }
    totalAmount { amount currencyCode }
  }
  lines(first: 100) {
    edges {
      node {
        id
        quantity
        merchandise {
          __typename
          ... on ProductVariant {
            id
            title
            availableForSale
            quantityAvailable
            price { amount currencyCode }
            image { url altText }
            product {
              title
              handle
              featuredImage { url altText }
            }
          }
        }
      }
    }
  }
`

const userErrorFields = `
  userErrors {
    field
    message
    code
  }
`

const productFields = `
  id
  title
  handle
  description
  tags
  productType
  featuredImage { url altText }
  variants(first: 1) {
    edges {
      node {
        id
        availableForSale
        quantityAvailable
        price { amount currencyCode }
      }
    }
  }
`

const cartCreateMutation = `
mutation cartCreate($input: CartInput!) {
  cartCreate(input: $input) {
    cart {` + cartFields + `}` + userErrorFields + `
  }
}`

const cartLinesAddMutation = `
mutation cartLinesAdd($cartId: ID!, $lines: [CartLineInput!]!) {
  cartLinesAdd(cartId: $cartId, lines: $lines) {
    cart {` + cartFields + `}` + userErrorFields + `
  }
}`

const cartLinesUpdateMutation = `
mutation cartLinesUpdate($cartId: ID!, $lines: [CartLineUpdateInput!]!) {
  cartLinesUpdate(cartId: $cartId, lines: $lines) {
    cart {` + cartFields + `}` + userErrorFields + `
  }
}`

const cartQuery = `
query cart($cartId: ID!) {
  cart(id: $cartId) {` + cartFields + `}
}`

const variantInventoryQuery = `
query variantInventory($id: ID!) {
  node(id: $id) {
    __typename
    ... on ProductVariant {
      id
      availableForSale
      quantityAvailable
    }
  }
}`

const searchProductsQuery = `
query searchProducts($query: String!, $first: Int!) {
  products(query: $query, first: $first) {
    edges { node {` + productFields + `} }
  }
}`

const listProductsQuery = `
query listProducts($first: Int!) {
  products(first: $first, sortKey: UPDATED_AT, reverse: true) {
    edges { node {` + productFields + `} }
  }
}`

const collectionQuery = `
query collection($handle: String!, $first: Int!) {
  collection(handle: $handle) {
    id
    handle
    title
    description
    products(first: $first) {
      edges { node {` + productFields + `} }
    }
  }
}`
